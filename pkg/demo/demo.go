// Package demo provides sample job bodies driven by the jobrunner CLI.
//
// Parameters arrive as strings from --param key=value flags and are coerced
// with spf13/cast, so "250ms", "3" and "true" all work as expected.
package demo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/vulntor/jobrunner/pkg/jobs"
	"github.com/vulntor/jobrunner/pkg/pipe"
)

// ErrUnknownJob is returned by Lookup for names that are not registered.
var ErrUnknownJob = errors.New("unknown job")

// ErrInjected is the failure raised by the fail job and by counter's fail_at.
var ErrInjected = errors.New("injected failure")

// Params are raw job parameters.
type Params map[string]string

func (p Params) int64(key string, def int64) (int64, error) {
	raw, ok := p[key]
	if !ok || raw == "" {
		return def, nil
	}
	v, err := cast.ToInt64E(raw)
	if err != nil {
		return 0, fmt.Errorf("parameter %s: %w", key, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("parameter %s: must not be negative", key)
	}
	return v, nil
}

func (p Params) duration(key string, def time.Duration) (time.Duration, error) {
	raw, ok := p[key]
	if !ok || raw == "" {
		return def, nil
	}
	v, err := cast.ToDurationE(raw)
	if err != nil {
		return 0, fmt.Errorf("parameter %s: %w", key, err)
	}
	return v, nil
}

// CounterParams configure Counter.
type CounterParams struct {
	Steps    int64
	Interval time.Duration
	// FailAt makes the job fail when it reaches this step. Zero disables it.
	FailAt int64
}

// ParseCounterParams reads steps, interval and fail_at.
func ParseCounterParams(raw Params) (CounterParams, error) {
	var (
		cp  CounterParams
		err error
	)
	if cp.Steps, err = raw.int64("steps", 10); err != nil {
		return cp, err
	}
	if cp.Interval, err = raw.duration("interval", 100*time.Millisecond); err != nil {
		return cp, err
	}
	if cp.FailAt, err = raw.int64("fail_at", 0); err != nil {
		return cp, err
	}
	return cp, nil
}

// Counter counts to Steps, publishing progress after each step and stopping
// when cancellation was requested.
func Counter(p CounterParams) jobs.Body {
	return func(ctx context.Context, cb jobs.Callback) (any, error) {
		if err := cb.UpdateMessageAndProgress(ctx, "counting", 0, p.Steps); err != nil {
			return nil, err
		}
		ticker := time.NewTicker(max(p.Interval, time.Millisecond))
		defer ticker.Stop()

		for step := int64(1); step <= p.Steps; step++ {
			if cb.WasCancelRequested(ctx) {
				return step - 1, jobs.ErrCanceled
			}
			<-ticker.C

			if p.FailAt > 0 && step == p.FailAt {
				return step, fmt.Errorf("step %d: %w", step, ErrInjected)
			}
			if err := cb.UpdateProgressMonotonic(ctx, step, p.Steps); err != nil {
				return step, err
			}
		}

		if err := cb.UpdateMessage(ctx, "done"); err != nil {
			return p.Steps, err
		}
		return p.Steps, nil
	}
}

// Fail returns a body that fails right away with message.
func Fail(message string) jobs.Body {
	return func(ctx context.Context, cb jobs.Callback) (any, error) {
		_ = cb.UpdateMessage(ctx, "about to fail")
		return nil, fmt.Errorf("%s: %w", message, ErrInjected)
	}
}

// SequenceParams configure Sequence.
type SequenceParams struct {
	// Count is how many records to produce. Zero produces until canceled.
	Count    int64
	Interval time.Duration
	// CheckEvery is how many records are produced between cancellation checks.
	CheckEvery int64
}

// ParseSequenceParams reads count, interval and check_every.
func ParseSequenceParams(raw Params) (SequenceParams, error) {
	var (
		sp  SequenceParams
		err error
	)
	if sp.Count, err = raw.int64("count", 1000); err != nil {
		return sp, err
	}
	if sp.Interval, err = raw.duration("interval", 0); err != nil {
		return sp, err
	}
	if sp.CheckEvery, err = raw.int64("check_every", 100); err != nil {
		return sp, err
	}
	if sp.CheckEvery == 0 {
		sp.CheckEvery = 1
	}
	return sp, nil
}

// Sequence writes 0, 1, 2, ... into out. It stops when Count records were
// written, when cancellation was requested or when out was terminated.
func Sequence(out *pipe.RecordPipe[int64], p SequenceParams) jobs.Body {
	return func(ctx context.Context, cb jobs.Callback) (any, error) {
		var total int64 = -1
		if p.Count > 0 {
			total = p.Count
		}
		for i := int64(0); total < 0 || i < total; i++ {
			if i%p.CheckEvery == 0 {
				if out.Terminated() || cb.WasCancelRequested(ctx) {
					return i, jobs.ErrCanceled
				}
				if total > 0 {
					_ = cb.UpdateProgress(ctx, i, total)
				} else {
					_ = cb.UpdateMessage(ctx, fmt.Sprintf("%d records produced", i))
				}
			}
			if err := out.Add(ctx, i); err != nil {
				return i, err
			}
			if p.Interval > 0 {
				time.Sleep(p.Interval)
			}
		}
		_ = cb.UpdateProgress(ctx, total, total)
		return total, nil
	}
}

// Lookup builds the named job body for `jobrunner run`.
func Lookup(name string, raw Params) (jobs.Body, error) {
	switch name {
	case "counter":
		p, err := ParseCounterParams(raw)
		if err != nil {
			return nil, err
		}
		return Counter(p), nil
	case "fail":
		msg := raw["message"]
		if msg == "" {
			msg = "demo job failed"
		}
		return Fail(msg), nil
	default:
		return nil, fmt.Errorf("%w %q (available: %s)", ErrUnknownJob, name, strings.Join(Names(), ", "))
	}
}

// Names lists the jobs Lookup knows.
func Names() []string {
	names := []string{"counter", "fail"}
	sort.Strings(names)
	return names
}
