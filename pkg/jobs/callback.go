package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Callback is handed to a running job body to report progress and observe
// cancellation. Every mutator publishes the whole record to the store.
type Callback interface {
	JobID() uuid.UUID
	UpdateMessage(ctx context.Context, text string) error
	UpdateProgress(ctx context.Context, current, total int64) error
	UpdateMessageAndProgress(ctx context.Context, text string, current, total int64) error
	// UpdateProgressMonotonic is a no-op unless neither value decreases.
	UpdateProgressMonotonic(ctx context.Context, current, total int64) error
	// IncrementProgress adds amount to current; a no-op while current is unset.
	IncrementProgress(ctx context.Context, amount int64) error
	ClearProgress(ctx context.Context) error
	// WasCancelRequested reads the stored cancellation flag. Bodies should
	// poll it and return ErrCanceled when it is set.
	WasCancelRequested(ctx context.Context) bool
}

// Body is a unit of work run by the Manager.
type Body func(ctx context.Context, cb Callback) (any, error)

// statusCallback publishes through a StatusStore.
type statusCallback struct {
	key    Key
	store  StatusStore
	logger zerolog.Logger
	now    func() time.Time
}

var _ Callback = (*statusCallback)(nil)

func (c *statusCallback) JobID() uuid.UUID { return c.key.JobID }

// mutate runs fn against the stored record unless the job is already
// terminal.
func (c *statusCallback) mutate(ctx context.Context, fn func(*Status) error) error {
	return update(ctx, c.store, c.key, func(st *Status) error {
		if st.State.Terminal() {
			return SkipWrite()
		}
		if err := fn(st); err != nil {
			return err
		}
		st.UpdatedAt = c.now()
		return nil
	})
}

func (c *statusCallback) UpdateMessage(ctx context.Context, text string) error {
	return c.mutate(ctx, func(st *Status) error {
		st.Message = text
		return nil
	})
}

func (c *statusCallback) UpdateProgress(ctx context.Context, current, total int64) error {
	if current < 0 || total < 0 {
		return ErrInvalidProgress
	}
	return c.mutate(ctx, func(st *Status) error {
		st.setProgress(current, total)
		return nil
	})
}

func (c *statusCallback) UpdateMessageAndProgress(ctx context.Context, text string, current, total int64) error {
	if current < 0 || total < 0 {
		return ErrInvalidProgress
	}
	return c.mutate(ctx, func(st *Status) error {
		st.Message = text
		st.setProgress(current, total)
		return nil
	})
}

func (c *statusCallback) UpdateProgressMonotonic(ctx context.Context, current, total int64) error {
	if current < 0 || total < 0 {
		return ErrInvalidProgress
	}
	return c.mutate(ctx, func(st *Status) error {
		if st.Current != nil && current < *st.Current {
			return SkipWrite()
		}
		if st.Total != nil && total < *st.Total {
			return SkipWrite()
		}
		st.setProgress(current, total)
		return nil
	})
}

func (c *statusCallback) IncrementProgress(ctx context.Context, amount int64) error {
	return c.mutate(ctx, func(st *Status) error {
		if st.Current == nil {
			return SkipWrite()
		}
		next := *st.Current + amount
		if next < 0 {
			next = 0
		}
		if st.Total != nil && next > *st.Total {
			next = *st.Total
		}
		st.Current = &next
		return nil
	})
}

func (c *statusCallback) ClearProgress(ctx context.Context) error {
	return c.mutate(ctx, func(st *Status) error {
		st.Current = nil
		st.Total = nil
		return nil
	})
}

func (c *statusCallback) WasCancelRequested(ctx context.Context) bool {
	st, err := c.store.Get(ctx, c.key)
	if err != nil {
		c.logger.Warn().Err(err).Str("job_id", c.key.JobID.String()).Msg("Failed to read cancellation flag")
		return false
	}
	return st.CancelRequested
}

// NopCallback accepts every Callback call without publishing anything. It is
// used where nobody will poll the job's status.
type NopCallback struct {
	id     uuid.UUID
	logger zerolog.Logger
}

var _ Callback = (*NopCallback)(nil)

// NewNopCallback returns a Callback that only logs at debug level.
func NewNopCallback(logger zerolog.Logger) *NopCallback {
	return &NopCallback{
		id:     uuid.New(),
		logger: logger.With().Str("component", "jobs.nop").Logger(),
	}
}

func (c *NopCallback) JobID() uuid.UUID { return c.id }

func (c *NopCallback) UpdateMessage(_ context.Context, text string) error {
	c.logger.Debug().Str("message", text).Msg("Status update dropped")
	return nil
}

func (c *NopCallback) UpdateProgress(_ context.Context, current, total int64) error {
	c.logger.Debug().Int64("current", current).Int64("total", total).Msg("Progress update dropped")
	return nil
}

func (c *NopCallback) UpdateMessageAndProgress(_ context.Context, text string, current, total int64) error {
	c.logger.Debug().
		Str("message", text).
		Int64("current", current).
		Int64("total", total).
		Msg("Status update dropped")
	return nil
}

func (c *NopCallback) UpdateProgressMonotonic(ctx context.Context, current, total int64) error {
	return c.UpdateProgress(ctx, current, total)
}

func (c *NopCallback) IncrementProgress(_ context.Context, amount int64) error {
	c.logger.Debug().Int64("amount", amount).Msg("Progress increment dropped")
	return nil
}

func (c *NopCallback) ClearProgress(context.Context) error {
	c.logger.Debug().Msg("Progress clear dropped")
	return nil
}

func (c *NopCallback) WasCancelRequested(context.Context) bool { return false }
