package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/vulntor/jobrunner/pkg/jobs"
)

func newKey() jobs.Key {
	return jobs.Key{JobID: uuid.New(), Kind: jobs.DefaultStatusKind}
}

func runningStatus(key jobs.Key) *jobs.Status {
	now := time.Now()
	return &jobs.Status{
		JobID:     key.JobID,
		Kind:      key.Kind,
		JobName:   "test",
		State:     jobs.StateRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMemoryStore_PutGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	key := newKey()

	_, err := s.Get(ctx, key)
	require.True(t, IsNotFound(err))

	st := runningStatus(key)
	require.NoError(t, s.Put(ctx, key, st))

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, st.JobID, got.JobID)
	require.Equal(t, jobs.StateRunning, got.State)

	// Returned records are copies.
	got.Message = "mutated"
	again, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.Empty(t, again.Message)
}

func TestMemoryStore_KindsDoNotCollide(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	id := uuid.New()

	a := jobs.Key{JobID: id, Kind: jobs.DefaultStatusKind}
	b := jobs.Key{JobID: id, Kind: "export-cursor"}

	require.NoError(t, s.Put(ctx, a, runningStatus(a)))

	_, err := s.Get(ctx, b)
	require.True(t, IsNotFound(err))
}

func TestMemoryStore_UpdateSkipWrite(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	key := newKey()
	require.NoError(t, s.Put(ctx, key, runningStatus(key)))

	err := s.Update(ctx, key, func(st *jobs.Status) error {
		st.Message = "should not persist"
		return jobs.SkipWrite()
	})
	require.True(t, jobs.IsSkipWrite(err))

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.Empty(t, got.Message)
}

func TestMemoryStore_UpdateMissing(t *testing.T) {
	s := NewMemoryStore()
	err := s.Update(context.Background(), newKey(), func(*jobs.Status) error { return nil })
	require.True(t, IsNotFound(err))
}

func TestMemoryStore_ConcurrentUpdatesAreAtomic(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	key := newKey()
	st := runningStatus(key)
	zero, total := int64(0), int64(1000)
	st.Current, st.Total = &zero, &total
	require.NoError(t, s.Put(ctx, key, st))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Update(ctx, key, func(st *jobs.Status) error {
				next := *st.Current + 1
				st.Current = &next
				return nil
			})
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, int64(100), *got.Current)
}

func TestMemoryStore_TTLExpiresFinishedRecords(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	clock := func() time.Time { return now }
	s := NewMemoryStore(WithTTL(time.Minute), WithClock(clock))

	running := newKey()
	finished := newKey()
	require.NoError(t, s.Put(ctx, running, runningStatus(running)))

	done := runningStatus(finished)
	done.State = jobs.StateComplete
	finishedAt := now
	done.FinishedAt = &finishedAt
	require.NoError(t, s.Put(ctx, finished, done))
	require.Equal(t, 2, s.Len())

	now = now.Add(2 * time.Minute)

	_, err := s.Get(ctx, finished)
	require.True(t, IsNotFound(err))

	_, err = s.Get(ctx, running)
	require.NoError(t, err, "running records never expire")

	require.Equal(t, 1, s.Sweep())
	require.Equal(t, 1, s.Len())
}

func TestMemoryStore_KeepsOriginalError(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	mgr := jobs.NewManager(s)
	boom := errors.New("disk full")

	_, err := mgr.Start(ctx, "failing", jobs.NoTimeout, func(context.Context, jobs.Callback) (any, error) {
		return nil, boom
	})
	var execErr *jobs.ExecutionError
	require.ErrorAs(t, err, &execErr)

	st, err := mgr.GetStatus(ctx, execErr.JobID)
	require.NoError(t, err)
	require.Equal(t, jobs.StateError, st.State)
	require.ErrorIs(t, st.CaughtError(), boom)
}

func TestMemoryStore_Closed(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	key := newKey()
	require.NoError(t, s.Close())

	require.ErrorIs(t, s.Put(ctx, key, runningStatus(key)), ErrClosed)
	_, err := s.Get(ctx, key)
	require.ErrorIs(t, err, ErrClosed)
}
