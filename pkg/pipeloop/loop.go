// Package pipeloop drives a record-producing job and a consumer over a shared
// pipe.
//
// The producer runs as a background job and writes into the pipe on its own.
// The loop polls the pipe with an adaptive backoff, calls the consumer once
// enough records are buffered, watches the producer's status record for
// completion or failure, and cuts the producer off once a record limit is
// reached. Cutting off cancels the job and terminates the pipe, so a producer
// that ignores cancellation still cannot block on a full buffer.
package pipeloop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vulntor/jobrunner/pkg/backoff"
	"github.com/vulntor/jobrunner/pkg/jobs"
)

// Pipe is the part of a record pipe the loop needs.
type Pipe interface {
	CountAvailable() int
	Terminate()
}

// capacityReporter is implemented by bounded pipes. A full pipe is ready for
// the consumer even below MinThreshold.
type capacityReporter interface {
	Capacity() int
}

// Consumer drains some records from the pipe and returns how many it
// processed. Errors are returned from Run as is.
type Consumer func(ctx context.Context) (int, error)

// State is the outcome of a loop run.
type State string

const (
	StateRunning         State = "RUNNING"
	StateDrainedNormally State = "DRAINED_NORMALLY"
	StateCutOffByLimit   State = "CUT_OFF_BY_LIMIT"
	StateFailed          State = "FAILED"
)

// Config tunes polling. Zero fields take the defaults from DefaultConfig.
type Config struct {
	// MinThreshold is the number of buffered records that triggers the
	// consumer.
	MinThreshold int `koanf:"min_threshold" validate:"gte=0"`

	InitialBackoff time.Duration `koanf:"initial_backoff" validate:"gte=0"`
	MaxBackoff     time.Duration `koanf:"max_backoff" validate:"gte=0"`

	// StallTimeout fails the run when no records were seen for this long.
	StallTimeout time.Duration `koanf:"stall_timeout" validate:"gte=0"`

	// RecordLimit stops the producer once this many records were consumed.
	// Zero means no limit.
	RecordLimit int64 `koanf:"record_limit" validate:"gte=0"`
}

// DefaultConfig returns the standard polling parameters.
func DefaultConfig() Config {
	return Config{
		MinThreshold:   10,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     time.Second,
		StallTimeout:   10 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MinThreshold <= 0 {
		c.MinThreshold = def.MinThreshold
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = def.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = def.MaxBackoff
	}
	if c.StallTimeout <= 0 {
		c.StallTimeout = def.StallTimeout
	}
	if c.RecordLimit < 0 {
		c.RecordLimit = 0
	}
	return c
}

// Result summarizes a run.
type Result struct {
	JobID   uuid.UUID
	Records int64
	State   State
	Elapsed time.Duration
}

// Option configures a Loop.
type Option func(*Loop)

// WithConfig replaces the polling configuration.
func WithConfig(cfg Config) Option {
	return func(l *Loop) { l.cfg = cfg.withDefaults() }
}

// WithLogger sets the loop's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// Loop runs producer/consumer pairs over one pipe.
type Loop struct {
	manager *jobs.Manager
	pipe    Pipe
	cfg     Config
	logger  zerolog.Logger
}

// New creates a Loop that starts producers through manager and watches p.
func New(manager *jobs.Manager, p Pipe, opts ...Option) *Loop {
	l := &Loop{
		manager: manager,
		pipe:    p,
		cfg:     DefaultConfig(),
		logger:  log.Logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With().Str("component", "pipeloop").Logger()
	return l
}

// Config returns the effective configuration.
func (l *Loop) Config() Config { return l.cfg }

// readyThreshold is MinThreshold capped at the pipe capacity.
func (l *Loop) readyThreshold() int {
	if c, ok := l.pipe.(capacityReporter); ok && c.Capacity() > 0 && c.Capacity() < l.cfg.MinThreshold {
		return c.Capacity()
	}
	return l.cfg.MinThreshold
}

// Run starts producer as a background job named name and feeds consume until
// the producer finishes, fails, stalls, or the record limit is reached.
func (l *Loop) Run(ctx context.Context, name string, producer jobs.Body, consume Consumer) (Result, error) {
	started := time.Now()
	res := Result{State: StateRunning}

	id, err := l.manager.StartAsync(ctx, name, producer)
	if err != nil {
		res.State = StateFailed
		return res, fmt.Errorf("start producer %s: %w", name, err)
	}
	res.JobID = id

	logger := l.logger.With().Str("job_id", id.String()).Str("job_name", name).Logger()

	fail := func(err error) (Result, error) {
		res.State = StateFailed
		res.Elapsed = time.Since(started)
		return res, err
	}

	st, err := l.status(ctx, id)
	if err != nil {
		l.abort(id, logger)
		return fail(err)
	}

	poll := backoff.NewPoll(l.cfg.InitialBackoff, l.cfg.MaxBackoff)
	lastSeen := time.Now()

	threshold := l.readyThreshold()
	for st.State == jobs.StateRunning {
		if l.pipe.CountAvailable() < threshold {
			if err := poll.Sleep(ctx); err != nil {
				l.abort(id, logger)
				return fail(err)
			}
			if idle := time.Since(lastSeen); idle > l.cfg.StallTimeout {
				l.abort(id, logger)
				logger.Error().Dur("idle", idle).Msg("Producer stalled")
				return fail(&StalledError{JobID: id, Idle: idle})
			}
		} else {
			poll.Reset()
			lastSeen = time.Now()
			n, err := consume(ctx)
			res.Records += int64(n)
			if err != nil {
				l.abort(id, logger)
				return fail(err)
			}
		}

		if l.cfg.RecordLimit > 0 && res.Records >= l.cfg.RecordLimit {
			logger.Info().
				Int64("records", res.Records).
				Int64("limit", l.cfg.RecordLimit).
				Msg("Record limit reached, cutting producer off")
			if err := l.manager.Cancel(ctx, id); err != nil {
				logger.Warn().Err(err).Msg("Failed to request producer cancellation")
			}
			l.pipe.Terminate()
			res.State = StateCutOffByLimit
			break
		}

		if st, err = l.status(ctx, id); err != nil {
			l.abort(id, logger)
			return fail(err)
		}
	}

	if res.State == StateRunning {
		if st.State == jobs.StateError {
			return fail(&ProducerError{JobID: id, Name: name, Err: st.CaughtError()})
		}
		res.State = StateDrainedNormally
	}

	n, err := l.flush(ctx, consume)
	res.Records += n
	if err != nil {
		return fail(err)
	}

	res.Elapsed = time.Since(started)
	l.logThroughput(logger, res)
	return res, nil
}

// flush calls consume until the pipe is empty or consume stops making
// progress. It always calls consume at least once.
func (l *Loop) flush(ctx context.Context, consume Consumer) (int64, error) {
	var total int64
	for {
		n, err := consume(ctx)
		total += int64(n)
		if err != nil || n <= 0 || l.pipe.CountAvailable() == 0 {
			return total, err
		}
	}
}

func (l *Loop) status(ctx context.Context, id uuid.UUID) (*jobs.Status, error) {
	st, err := l.manager.GetStatus(ctx, id)
	if jobs.IsNotFound(err) {
		return nil, fmt.Errorf("job %s: %w", id, ErrMissingStatus)
	}
	if err != nil {
		return nil, fmt.Errorf("read producer status: %w", err)
	}
	return st, nil
}

// abort cancels the producer and terminates the pipe after the loop gave up.
// It runs on a fresh context because the caller's may already be done.
func (l *Loop) abort(id uuid.UUID, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.manager.Cancel(ctx, id); err != nil && !errors.Is(err, jobs.ErrNotFound) {
		logger.Warn().Err(err).Msg("Failed to request producer cancellation")
	}
	l.pipe.Terminate()
}

func (l *Loop) logThroughput(logger zerolog.Logger, res Result) {
	var rate float64
	if secs := res.Elapsed.Seconds(); secs > 0 {
		rate = float64(res.Records) / secs
	}
	logger.Info().
		Str("state", string(res.State)).
		Int64("records", res.Records).
		Dur("elapsed", res.Elapsed).
		Float64("records_per_sec", rate).
		Msg("Pipe loop finished")
}
