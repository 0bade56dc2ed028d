package pipeloop

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrProducerStalled matches a *StalledError.
	ErrProducerStalled = errors.New("producer appears stalled")

	// ErrMissingStatus is returned when the producer's status record vanished
	// while the loop was running.
	ErrMissingStatus = errors.New("producer status missing")
)

// StalledError is returned when no records showed up for longer than the
// configured stall timeout.
type StalledError struct {
	JobID uuid.UUID
	Idle  time.Duration
}

func (e *StalledError) Error() string {
	return fmt.Sprintf("producer job %s appears stalled: no records for %s", e.JobID, e.Idle.Round(time.Millisecond))
}

// Is lets errors.Is match ErrProducerStalled.
func (e *StalledError) Is(target error) bool {
	return target == ErrProducerStalled
}

// ProducerError wraps the failure recorded by the producer job.
type ProducerError struct {
	JobID uuid.UUID
	Name  string
	Err   error
}

func (e *ProducerError) Error() string {
	return fmt.Sprintf("producer job %s (%s) failed: %v", e.Name, e.JobID, e.Err)
}

func (e *ProducerError) Unwrap() error {
	return e.Err
}
