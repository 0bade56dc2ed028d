package commands

import (
	"context"
	"errors"

	"github.com/vulntor/jobrunner/pkg/config"
	"github.com/vulntor/jobrunner/pkg/demo"
	"github.com/vulntor/jobrunner/pkg/jobs"
	"github.com/vulntor/jobrunner/pkg/pipeloop"
	"github.com/vulntor/jobrunner/pkg/storage"
)

var (
	// ErrInvalidJobID is returned when a job ID argument is not a UUID.
	ErrInvalidJobID = errors.New("invalid job id")

	// ErrInvalidFlag is returned for flag values a command cannot use.
	ErrInvalidFlag = errors.New("invalid flag value")
)

// Error codes used by the suggestion system and exit code mapping.
const (
	errorCodeInvalidInput = "INVALID_INPUT"
	errorCodeNotFound     = "NOT_FOUND"
	errorCodeCanceled     = "JOB_CANCELED"
	errorCodeStalled      = "PRODUCER_STALLED"
	errorCodeUnsupported  = "UNSUPPORTED_BACKEND"
	errorCodeJobFailure   = "JOB_FAILURE"
)

// errUnsupportedBackend marks operations the configured store cannot serve.
var errUnsupportedBackend = errors.New("operation not supported by the configured store backend")

// codedError wraps an error with an explicit error code.
type codedError struct {
	error
	code string
}

func (e *codedError) Error() string {
	return e.error.Error()
}

func (e *codedError) Unwrap() error {
	return e.error
}

func (e *codedError) Code() string {
	return e.code
}

// WithErrorCode wraps err with a specific CLI error code.
func WithErrorCode(err error, code string) error {
	if err == nil {
		return nil
	}
	return &codedError{error: err, code: code}
}

// ErrorCode resolves an error into a CLI error code.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := coded.Code(); code != "" {
			return code
		}
	}

	var validationErr *config.ValidationError
	switch {
	case errors.As(err, &validationErr),
		errors.Is(err, ErrInvalidJobID),
		errors.Is(err, ErrInvalidFlag),
		errors.Is(err, demo.ErrUnknownJob),
		storage.IsInvalidInput(err):
		return errorCodeInvalidInput
	case jobs.IsNotFound(err):
		return errorCodeNotFound
	case errors.Is(err, jobs.ErrCanceled), errors.Is(err, context.Canceled):
		return errorCodeCanceled
	case errors.Is(err, pipeloop.ErrProducerStalled):
		return errorCodeStalled
	case errors.Is(err, errUnsupportedBackend):
		return errorCodeUnsupported
	}

	return errorCodeJobFailure
}

// ExitCode maps errors to process exit codes:
//
//   - 0: success
//   - 1: general failure
//   - 2: invalid usage or input
//   - 4: job not found
//   - 7: backend cannot serve the operation
//   - 130: canceled
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	switch ErrorCode(err) {
	case errorCodeInvalidInput:
		return 2
	case errorCodeNotFound:
		return 4
	case errorCodeUnsupported:
		return 7
	case errorCodeCanceled:
		return 130
	default:
		return 1
	}
}

// Suggestions provides CLI hints for an error.
func Suggestions(err error) []string {
	switch ErrorCode(err) {
	case errorCodeInvalidInput:
		return []string{
			"List the demo jobs:         jobrunner run --help",
			"Check a configuration file: jobrunner --config jobrunner.yaml status <job-id>",
		}
	case errorCodeNotFound:
		return []string{
			"Job records live in the configured store; the memory backend forgets them on exit",
			"Use a shared backend:       jobrunner --store.backend file run counter",
		}
	case errorCodeStalled:
		return []string{
			"Raise the stall timeout:    jobrunner stream --pipe.stall_timeout 30m",
		}
	case errorCodeUnsupported:
		return []string{
			"Only the file backend is garbage collected; redis and nats expire records by TTL",
		}
	default:
		return nil
	}
}
