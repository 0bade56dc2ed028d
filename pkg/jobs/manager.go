package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

// NoTimeout makes Start wait until the job body returns.
const NoTimeout time.Duration = -1

// DefaultMaxConcurrent bounds the number of job bodies running at once.
const DefaultMaxConcurrent = 64

// Outcome is the result of Start: either the body's return value, or an
// escalation telling the caller to poll JobID instead.
type Outcome struct {
	JobID  uuid.UUID
	Result any
	async  bool
}

// Async reports whether the job went to the background before finishing.
func (o Outcome) Async() bool { return o.async }

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMaxConcurrent sets how many job bodies may run at once. Values <= 0
// keep the default.
func WithMaxConcurrent(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxConcurrent = n
		}
	}
}

// WithStatusKind overrides the kind under which status records are stored.
func WithStatusKind(kind StatusKind) Option {
	return func(m *Manager) {
		if kind != "" {
			m.kind = kind
		}
	}
}

// Manager starts job bodies on goroutines and owns their terminal state.
type Manager struct {
	store         StatusStore
	kind          StatusKind
	logger        zerolog.Logger
	maxConcurrent int
	slots         *semaphore.Weighted
	now           func() time.Time

	wg      sync.WaitGroup
	active  atomic.Int64
	mu      sync.RWMutex
	stopped bool
}

type workerResult struct {
	value any
	err   error
}

// NewManager creates a Manager publishing to store.
func NewManager(store StatusStore, opts ...Option) *Manager {
	m := &Manager{
		store:         store,
		kind:          DefaultStatusKind,
		logger:        log.Logger,
		maxConcurrent: DefaultMaxConcurrent,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With().Str("component", "jobs").Logger()
	m.slots = semaphore.NewWeighted(int64(m.maxConcurrent))
	return m
}

// Store returns the status store the manager publishes to.
func (m *Manager) Store() StatusStore { return m.store }

// Kind returns the status kind used for records.
func (m *Manager) Kind() StatusKind { return m.kind }

// Start launches body and waits for it up to timeout.
//
// A zero timeout returns at once with an async Outcome. A positive timeout
// returns the body's result if it finishes in time and an async Outcome
// otherwise; the body is never stopped by the timeout. NoTimeout waits for
// the body to return. A failure inside the wait window comes back as an
// *ExecutionError; later failures are only visible through GetStatus.
//
// If ctx ends while waiting, Start returns the async Outcome together with
// ctx.Err(). The body runs with a context that is not canceled by ctx.
func (m *Manager) Start(ctx context.Context, name string, timeout time.Duration, body Body) (Outcome, error) {
	if body == nil {
		return Outcome{}, errors.New("job body is nil")
	}

	// The wait group is reserved under the same lock Close takes, so Close
	// either rejects this job or waits for it.
	m.mu.RLock()
	if m.stopped {
		m.mu.RUnlock()
		return Outcome{}, ErrStopped
	}
	m.wg.Add(1)
	m.mu.RUnlock()

	if err := m.slots.Acquire(ctx, 1); err != nil {
		m.wg.Done()
		return Outcome{}, fmt.Errorf("wait for job slot: %w", err)
	}
	if m.isStopped() {
		m.slots.Release(1)
		m.wg.Done()
		return Outcome{}, ErrStopped
	}

	key := Key{JobID: uuid.New(), Kind: m.kind}
	if err := m.store.Put(ctx, key, newStatus(key, name, m.now())); err != nil {
		m.slots.Release(1)
		m.wg.Done()
		return Outcome{}, fmt.Errorf("publish initial status: %w", err)
	}

	done := make(chan workerResult, 1)
	m.active.Add(1)
	go m.run(context.WithoutCancel(ctx), key, name, body, done)

	escalated := Outcome{JobID: key.JobID, async: true}
	if timeout == 0 {
		return escalated, nil
	}

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, ErrCanceled) {
				return Outcome{JobID: key.JobID}, res.err
			}
			return Outcome{JobID: key.JobID}, &ExecutionError{JobID: key.JobID, JobName: name, Err: res.err}
		}
		return Outcome{JobID: key.JobID, Result: res.value}, nil
	case <-deadline:
		m.logger.Debug().
			Str("job_id", key.JobID.String()).
			Str("job_name", name).
			Dur("timeout", timeout).
			Msg("Job going async")
		return escalated, nil
	case <-ctx.Done():
		return escalated, ctx.Err()
	}
}

// StartAsync launches body and returns its identifier without waiting.
func (m *Manager) StartAsync(ctx context.Context, name string, body Body) (uuid.UUID, error) {
	out, err := m.Start(ctx, name, 0, body)
	return out.JobID, err
}

// GetStatus returns the current record for id. A missing record yields an
// error matching ErrNotFound.
func (m *Manager) GetStatus(ctx context.Context, id uuid.UUID) (*Status, error) {
	return m.store.Get(ctx, Key{JobID: id, Kind: m.kind})
}

// Cancel asks job id to stop. The body has to observe the request itself.
// Unknown and already finished jobs are ignored.
func (m *Manager) Cancel(ctx context.Context, id uuid.UUID) error {
	key := Key{JobID: id, Kind: m.kind}
	err := update(ctx, m.store, key, func(st *Status) error {
		if st.State.Terminal() || st.CancelRequested {
			return SkipWrite()
		}
		st.CancelRequested = true
		st.UpdatedAt = m.now()
		return nil
	})
	if IsNotFound(err) {
		m.logger.Debug().Str("job_id", id.String()).Msg("Cancel requested for unknown job")
		return nil
	}
	if err != nil {
		return fmt.Errorf("request cancel of job %s: %w", id, err)
	}
	m.logger.Info().Str("job_id", id.String()).Msg("Job cancellation requested")
	return nil
}

// Active returns the number of job bodies currently running.
func (m *Manager) Active() int {
	return int(m.active.Load())
}

// Wait blocks until every running job body returns or ctx ends.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		m.logger.Warn().Int("active", m.Active()).Msg("Timed out waiting for running jobs")
		return ctx.Err()
	}
}

// Close rejects new jobs and waits for running ones like Wait. Starts that
// passed the stopped check before Close are waited for as well.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
	return m.Wait(ctx)
}

func (m *Manager) isStopped() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stopped
}

// run executes body and records its terminal state before reporting the
// result to the waiter.
func (m *Manager) run(ctx context.Context, key Key, name string, body Body, done chan<- workerResult) {
	defer m.wg.Done()
	defer m.active.Add(-1)
	defer m.slots.Release(1)

	logger := m.logger.With().
		Str("job_id", key.JobID.String()).
		Str("job_name", name).
		Logger()

	cb := &statusCallback{key: key, store: m.store, logger: logger, now: m.now}

	started := m.now()
	logger.Debug().Msg("Job started")

	value, err := invoke(ctx, body, cb)

	if perr := m.finish(ctx, key, err); perr != nil {
		logger.Error().Err(perr).Msg("Failed to publish terminal status")
	}

	if err != nil {
		logger.Warn().Err(err).Dur("elapsed", m.now().Sub(started)).Msg("Job failed")
	} else {
		logger.Debug().Dur("elapsed", m.now().Sub(started)).Msg("Job completed")
	}

	done <- workerResult{value: value, err: err}
}

// finish records the terminal state once.
func (m *Manager) finish(ctx context.Context, key Key, jobErr error) error {
	return update(ctx, m.store, key, func(st *Status) error {
		if !st.finish(jobErr, m.now()) {
			return SkipWrite()
		}
		return nil
	})
}

func invoke(ctx context.Context, body Body, cb Callback) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return body(ctx, cb)
}
