package storage

import (
	"context"
	"sync"
	"time"

	"github.com/vulntor/jobrunner/pkg/jobs"
)

// MemoryStore keeps status records in process memory. Records keep their
// original error values, so CaughtError works with errors.Is/As.
//
// Finished records older than the TTL are swept lazily on writes.
type MemoryStore struct {
	mu        sync.RWMutex
	records   map[jobs.Key]*jobs.Status
	ttl       time.Duration
	now       func() time.Time
	lastSweep time.Time
	closed    bool
}

var (
	_ jobs.StatusStore = (*MemoryStore)(nil)
	_ jobs.Updater     = (*MemoryStore)(nil)
)

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithTTL expires finished records ttl after they finished.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(s *MemoryStore) { s.ttl = ttl }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		records: make(map[jobs.Key]*jobs.Status),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastSweep = s.now()
	return s
}

// Put stores a copy of st under key.
func (s *MemoryStore) Put(_ context.Context, key jobs.Key, st *jobs.Status) error {
	if st == nil {
		return NewInvalidInputError("status", "status is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.records[key] = st.Clone()
	s.maybeSweepLocked()
	return nil
}

// Get returns a copy of the record under key.
func (s *MemoryStore) Get(_ context.Context, key jobs.Key) (*jobs.Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	st, ok := s.records[key]
	if !ok || s.expired(st) {
		return nil, NewNotFoundError(key)
	}
	return st.Clone(), nil
}

// Update applies fn to a copy of the record under the store lock.
func (s *MemoryStore) Update(_ context.Context, key jobs.Key, fn func(*jobs.Status) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	st, ok := s.records[key]
	if !ok || s.expired(st) {
		return NewNotFoundError(key)
	}

	next := st.Clone()
	if err := fn(next); err != nil {
		return err
	}
	s.records[key] = next
	return nil
}

// Len returns the number of live records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, st := range s.records {
		if !s.expired(st) {
			n++
		}
	}
	return n
}

// Sweep drops expired records and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked()
}

// Close releases the records. Later calls fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.records = nil
	return nil
}

func (s *MemoryStore) expired(st *jobs.Status) bool {
	if s.ttl <= 0 || st.FinishedAt == nil {
		return false
	}
	return s.now().Sub(*st.FinishedAt) > s.ttl
}

// maybeSweepLocked sweeps at most once per TTL period.
func (s *MemoryStore) maybeSweepLocked() {
	if s.ttl <= 0 {
		return
	}
	if s.now().Sub(s.lastSweep) < s.ttl {
		return
	}
	s.sweepLocked()
}

func (s *MemoryStore) sweepLocked() int {
	removed := 0
	for key, st := range s.records {
		if s.expired(st) {
			delete(s.records, key)
			removed++
		}
	}
	s.lastSweep = s.now()
	return removed
}
