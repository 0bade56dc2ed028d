package jobs

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no status record exists for a key.
	ErrNotFound = errors.New("job status not found")

	// ErrCanceled is returned by job bodies that stopped because cancellation
	// was requested.
	ErrCanceled = errors.New("job canceled")

	// ErrInvalidProgress is returned when a progress counter is negative.
	ErrInvalidProgress = errors.New("progress values must be non-negative")

	// ErrStopped is returned by Start after the manager has been closed.
	ErrStopped = errors.New("job manager stopped")
)

// ExecutionError is returned to a synchronous caller whose job body failed
// inside the wait window.
type ExecutionError struct {
	JobID   uuid.UUID
	JobName string
	Err     error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("job %s (%s) failed: %v", e.JobName, e.JobID, e.Err)
}

// Unwrap returns the body's failure.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// PanicError is recorded when a job body panics.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("job panicked: %v", e.Value)
}

// RemoteError stands in for a failure recorded by a serializing store, where
// only the message survives.
type RemoteError struct {
	JobID   uuid.UUID
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// IsNotFound checks if an error is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
