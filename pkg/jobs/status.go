// Package jobs runs units of work in the background and tracks them through a
// shared status record.
//
// A job is started through a Manager. The caller may wait for it up to a time
// budget; when the budget runs out the job keeps running and the caller gets
// its identifier back to poll with GetStatus. Progress and cancellation flow
// through the Status record held in a StatusStore, which may live outside the
// process (files, Redis, NATS KV).
package jobs

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a job.
type State string

const (
	StateRunning  State = "RUNNING"
	StateComplete State = "COMPLETE"
	StateError    State = "ERROR"
)

// Terminal reports whether no further transitions are allowed from s.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateError
}

// StatusKind namespaces status records so one store can hold other kinds of
// per-job state without key collisions.
type StatusKind string

// DefaultStatusKind is the kind used for job lifecycle records.
const DefaultStatusKind StatusKind = "job-status"

// Key addresses one status record in a StatusStore.
type Key struct {
	JobID uuid.UUID
	Kind  StatusKind
}

// String renders the key as "<kind>/<job-id>".
func (k Key) String() string {
	return string(k.Kind) + "/" + k.JobID.String()
}

// Status describes one job execution.
type Status struct {
	JobID           uuid.UUID  `json:"job_id"`
	Kind            StatusKind `json:"kind"`
	JobName         string     `json:"job_name"`
	State           State      `json:"state"`
	Message         string     `json:"message,omitempty"`
	Current         *int64     `json:"current,omitempty"`
	Total           *int64     `json:"total,omitempty"`
	CancelRequested bool       `json:"cancel_requested"`
	Error           string     `json:"error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`

	// cause is the original failure; only in-process stores carry it.
	cause error
}

// newStatus returns the initial RUNNING record for a job.
func newStatus(key Key, name string, now time.Time) *Status {
	return &Status{
		JobID:     key.JobID,
		Kind:      key.Kind,
		JobName:   name,
		State:     StateRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Key returns the store key of the record.
func (s *Status) Key() Key {
	return Key{JobID: s.JobID, Kind: s.Kind}
}

// Clone returns a deep copy of the record, including the in-process cause.
func (s *Status) Clone() *Status {
	if s == nil {
		return nil
	}
	c := *s
	if s.Current != nil {
		v := *s.Current
		c.Current = &v
	}
	if s.Total != nil {
		v := *s.Total
		c.Total = &v
	}
	if s.FinishedAt != nil {
		v := *s.FinishedAt
		c.FinishedAt = &v
	}
	return &c
}

// CaughtError returns the failure that moved the job to ERROR, or nil.
//
// Records read back from a serializing store lose the original error value;
// for those a *RemoteError carrying the message is returned.
func (s *Status) CaughtError() error {
	if s == nil || s.State != StateError {
		return nil
	}
	if s.cause != nil {
		return s.cause
	}
	return &RemoteError{JobID: s.JobID, Message: s.Error}
}

// Progress returns the progress counters and whether each is set.
func (s *Status) Progress() (current int64, hasCurrent bool, total int64, hasTotal bool) {
	if s.Current != nil {
		current, hasCurrent = *s.Current, true
	}
	if s.Total != nil {
		total, hasTotal = *s.Total, true
	}
	return
}

// ProgressString renders progress as "N of M", "N" or "".
func (s *Status) ProgressString() string {
	cur, okCur, tot, okTot := s.Progress()
	switch {
	case okCur && okTot:
		return fmt.Sprintf("%d of %d", cur, tot)
	case okCur:
		return fmt.Sprintf("%d", cur)
	default:
		return ""
	}
}

// finish moves the record to its terminal state. It reports false when the
// record was already terminal.
func (s *Status) finish(err error, now time.Time) bool {
	if s.State.Terminal() {
		return false
	}
	s.State = StateComplete
	if err != nil {
		s.State = StateError
		s.Error = err.Error()
		s.cause = err
	}
	s.FinishedAt = &now
	s.UpdatedAt = now
	return true
}

// setProgress stores current/total with current clamped to total.
func (s *Status) setProgress(current, total int64) {
	if current > total {
		current = total
	}
	s.Current = &current
	s.Total = &total
}

func (s *Status) String() string {
	if s == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s %s [%s] %s", s.Key(), s.JobName, s.State, s.ProgressString())
}
