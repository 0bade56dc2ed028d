// Package pipe provides RecordPipe, a bounded in-memory buffer between a
// producing job and a consumer.
//
// Writers block while the buffer is full. Once the pipe is terminated every
// further write returns immediately and the record is dropped, so a producer
// that keeps going after its consumer stopped can never wedge on a full
// buffer. Records already buffered stay drainable.
package pipe

import (
	"context"
	"sync"
	"sync/atomic"
)

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 1000

// RecordPipe is a bounded FIFO of records. It is safe for concurrent use.
type RecordPipe[T any] struct {
	mu         sync.Mutex
	buf        []T
	capacity   int
	terminated bool
	// space is closed (and replaced) whenever room appears or the pipe is
	// terminated, waking blocked writers.
	space chan struct{}

	discarded atomic.Int64
}

// New returns an empty pipe holding at most capacity records.
func New[T any](capacity int) *RecordPipe[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RecordPipe[T]{
		buf:      make([]T, 0, capacity),
		capacity: capacity,
		space:    make(chan struct{}),
	}
}

// Capacity returns the maximum number of buffered records.
func (p *RecordPipe[T]) Capacity() int { return p.capacity }

// Add appends rec, waiting while the pipe is full. After Terminate the record
// is discarded and Add returns nil. If ctx ends while waiting, ctx.Err() is
// returned and rec is not added.
func (p *RecordPipe[T]) Add(ctx context.Context, rec T) error {
	for {
		p.mu.Lock()
		if p.terminated {
			p.mu.Unlock()
			p.discarded.Add(1)
			return nil
		}
		if len(p.buf) < p.capacity {
			p.buf = append(p.buf, rec)
			p.mu.Unlock()
			return nil
		}
		wait := p.space
		p.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// AddAll adds recs in order, stopping at the first error.
func (p *RecordPipe[T]) AddAll(ctx context.Context, recs []T) error {
	for _, rec := range recs {
		if err := p.Add(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// CountAvailable returns the number of buffered records.
func (p *RecordPipe[T]) CountAvailable() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buf)
}

// Drain removes and returns up to limit buffered records. A non-positive limit
// drains everything.
func (p *RecordPipe[T]) Drain(limit int) []T {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.buf)
	if limit > 0 && limit < n {
		n = limit
	}
	if n == 0 {
		return nil
	}

	out := make([]T, n)
	copy(out, p.buf[:n])
	rest := copy(p.buf, p.buf[n:])
	clear(p.buf[rest:])
	p.buf = p.buf[:rest]
	p.wakeLocked()
	return out
}

// DrainTo drains up to limit records and hands each to fn. It returns the
// number of records fn accepted; on error the failing record and the ones
// after it in this batch are dropped.
func (p *RecordPipe[T]) DrainTo(limit int, fn func(T) error) (int, error) {
	recs := p.Drain(limit)
	for i, rec := range recs {
		if err := fn(rec); err != nil {
			return i, err
		}
	}
	return len(recs), nil
}

// Terminate makes all future writes no-ops and releases blocked writers.
// Calling it more than once has no further effect.
func (p *RecordPipe[T]) Terminate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.terminated {
		return
	}
	p.terminated = true
	p.wakeLocked()
}

// Terminated reports whether Terminate was called.
func (p *RecordPipe[T]) Terminated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminated
}

// Discarded returns how many writes were dropped after Terminate.
func (p *RecordPipe[T]) Discarded() int64 {
	return p.discarded.Load()
}

func (p *RecordPipe[T]) wakeLocked() {
	close(p.space)
	p.space = make(chan struct{})
}
