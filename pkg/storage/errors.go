package storage

import (
	"errors"
	"fmt"

	"github.com/vulntor/jobrunner/pkg/jobs"
)

// Common errors returned by status stores.
var (
	// ErrNotFound is returned when no record exists for a key. It is the
	// same value as jobs.ErrNotFound so callers of either package match it.
	ErrNotFound = jobs.ErrNotFound

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrClosed is returned when attempting to use a closed store.
	ErrClosed = errors.New("store is closed")

	// ErrConflict is returned when an atomic update kept losing races with
	// concurrent writers.
	ErrConflict = errors.New("concurrent update conflict")

	// ErrUnknownBackend is returned by the factory for unregistered backends.
	ErrUnknownBackend = errors.New("unknown store backend")
)

// NotFoundError wraps ErrNotFound with the missing key.
type NotFoundError struct {
	Key jobs.Key
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("status not found: %s", e.Key)
}

// Unwrap returns the underlying error.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// InvalidInputError wraps ErrInvalidInput with details.
type InvalidInputError struct {
	Field  string // Field name that failed validation
	Reason string // Why validation failed
}

// Error implements the error interface.
func (e *InvalidInputError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid input for field %q: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid input: %s", e.Reason)
}

// Unwrap returns the underlying error.
func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}

// NewNotFoundError creates a NotFoundError.
func NewNotFoundError(key jobs.Key) error {
	return &NotFoundError{Key: key}
}

// NewInvalidInputError creates an InvalidInputError.
func NewInvalidInputError(field, reason string) error {
	return &InvalidInputError{Field: field, Reason: reason}
}

// IsNotFound checks if an error is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidInput checks if an error is or wraps ErrInvalidInput.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
