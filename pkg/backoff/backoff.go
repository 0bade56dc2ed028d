// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package backoff provides the growing wait intervals used by polling loops
// and by connection setup against remote status stores.
//
// Two shapes are offered:
//
//   - Poll: a stateful interval that doubles on every idle iteration up to a
//     cap and snaps back to its initial value once work shows up.
//   - Retry: runs an operation until it succeeds, fails permanently, or
//     runs out of attempts, sleeping with exponential backoff in between.
package backoff

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Poll is an adaptive sleep interval. It is not safe for concurrent use.
type Poll struct {
	Initial time.Duration
	Max     time.Duration

	current time.Duration
}

// NewPoll creates a Poll starting at initial and capped at maxWait.
func NewPoll(initial, maxWait time.Duration) *Poll {
	if initial <= 0 {
		initial = time.Millisecond
	}
	if maxWait < initial {
		maxWait = initial
	}
	return &Poll{Initial: initial, Max: maxWait, current: initial}
}

// Next returns the interval to sleep now and doubles the following one.
func (p *Poll) Next() time.Duration {
	if p.current <= 0 {
		p.current = p.Initial
	}
	d := p.current
	p.current *= 2
	if p.current > p.Max {
		p.current = p.Max
	}
	return d
}

// Reset returns the interval to its initial value.
func (p *Poll) Reset() {
	p.current = p.Initial
}

// Sleep waits for Next() or until ctx ends.
func (p *Poll) Sleep(ctx context.Context) error {
	timer := time.NewTimer(p.Next())
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RetryConfig defines retry behavior for store connection setup.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts (0 means a single attempt).
	MaxAttempts int

	// InitialWait is the wait before the first retry.
	InitialWait time.Duration

	// MaxWait caps the wait between retries.
	MaxWait time.Duration

	// Multiplier for exponential backoff (must be >= 1.0).
	Multiplier float64

	// Jitter adds up to ±25% randomness to each wait.
	Jitter bool
}

// DefaultRetryConfig returns 3 attempts starting at 500ms with jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		InitialWait: 500 * time.Millisecond,
		MaxWait:     10 * time.Second,
		Multiplier:  2.0,
		Jitter:      true,
	}
}

// NoRetry returns a config that disables retries.
func NoRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 0}
}

// Validate checks if the retry config is valid.
func (rc RetryConfig) Validate() error {
	if rc.MaxAttempts < 0 {
		return fmt.Errorf("MaxAttempts must be >= 0, got %d", rc.MaxAttempts)
	}
	if rc.MaxAttempts == 0 {
		return nil
	}
	if rc.InitialWait < 0 {
		return fmt.Errorf("InitialWait must be >= 0, got %v", rc.InitialWait)
	}
	if rc.MaxWait < 0 {
		return fmt.Errorf("MaxWait must be >= 0, got %v", rc.MaxWait)
	}
	if rc.Multiplier < 1.0 {
		return fmt.Errorf("multiplier must be >= 1.0, got %f", rc.Multiplier)
	}
	if rc.MaxWait > 0 && rc.InitialWait > rc.MaxWait {
		return fmt.Errorf("InitialWait (%v) must be <= MaxWait (%v)", rc.InitialWait, rc.MaxWait)
	}
	return nil
}

// calculateWait computes the wait time before retry number attempt (1-based).
func (rc RetryConfig) calculateWait(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	wait := float64(rc.InitialWait) * math.Pow(rc.Multiplier, float64(attempt-1))
	if rc.MaxWait > 0 && wait > float64(rc.MaxWait) {
		wait = float64(rc.MaxWait)
	}

	if rc.Jitter {
		jitterRange := wait * 0.25
		wait += (rand.Float64() * 2 * jitterRange) - jitterRange
	}

	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}

// permanentError marks an error that must not be retried.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so Retry returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// RetryFunc is an operation that may fail transiently.
type RetryFunc func(ctx context.Context) error

// Retry executes fn until it succeeds, returns a Permanent error, ctx ends,
// or the attempts are used up.
func Retry(ctx context.Context, config RetryConfig, fn RetryFunc) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid retry config: %w", err)
	}

	maxAttempts := config.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if attempt < maxAttempts-1 {
			select {
			case <-time.After(config.calculateWait(attempt + 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("max attempts (%d) exceeded: %w", maxAttempts, lastErr)
}
