package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestCallback(t *testing.T) (*statusCallback, *mapStore) {
	t.Helper()
	store := newMapStore()
	key := store.seed(newStatus(Key{JobID: uuid.New(), Kind: DefaultStatusKind}, "callback", time.Now()))
	return &statusCallback{key: key, store: store, logger: zerolog.Nop(), now: time.Now}, store
}

func getStatus(t *testing.T, cb *statusCallback, store *mapStore) *Status {
	t.Helper()
	st, err := store.Get(context.Background(), cb.key)
	require.NoError(t, err)
	return st
}

func TestCallback_UpdateMessageAndProgress(t *testing.T) {
	ctx := context.Background()
	cb, store := newTestCallback(t)

	require.NoError(t, cb.UpdateMessage(ctx, "loading"))
	require.Equal(t, "loading", getStatus(t, cb, store).Message)

	require.NoError(t, cb.UpdateProgress(ctx, 3, 7))
	require.Equal(t, "3 of 7", getStatus(t, cb, store).ProgressString())

	require.NoError(t, cb.UpdateMessageAndProgress(ctx, "almost", 6, 7))
	st := getStatus(t, cb, store)
	require.Equal(t, "almost", st.Message)
	require.Equal(t, "6 of 7", st.ProgressString())
}

func TestCallback_ProgressClampedToTotal(t *testing.T) {
	ctx := context.Background()
	cb, store := newTestCallback(t)

	require.NoError(t, cb.UpdateProgress(ctx, 12, 10))
	st := getStatus(t, cb, store)
	require.Equal(t, int64(10), *st.Current)
	require.Equal(t, int64(10), *st.Total)
}

func TestCallback_NegativeProgressRejected(t *testing.T) {
	ctx := context.Background()
	cb, store := newTestCallback(t)

	require.ErrorIs(t, cb.UpdateProgress(ctx, -1, 10), ErrInvalidProgress)
	require.ErrorIs(t, cb.UpdateMessageAndProgress(ctx, "x", 1, -10), ErrInvalidProgress)
	require.ErrorIs(t, cb.UpdateProgressMonotonic(ctx, -1, 1), ErrInvalidProgress)
	require.Zero(t, store.putCount())
}

func TestCallback_UpdateProgressMonotonic(t *testing.T) {
	ctx := context.Background()
	cb, store := newTestCallback(t)

	require.NoError(t, cb.UpdateProgressMonotonic(ctx, 5, 10))
	require.Equal(t, "5 of 10", getStatus(t, cb, store).ProgressString())

	require.NoError(t, cb.UpdateProgressMonotonic(ctx, 3, 10))
	require.Equal(t, "5 of 10", getStatus(t, cb, store).ProgressString(), "current must not go back")

	require.NoError(t, cb.UpdateProgressMonotonic(ctx, 6, 8))
	require.Equal(t, "5 of 10", getStatus(t, cb, store).ProgressString(), "total must not go back")

	require.NoError(t, cb.UpdateProgressMonotonic(ctx, 7, 10))
	require.Equal(t, "7 of 10", getStatus(t, cb, store).ProgressString())
}

func TestCallback_IncrementProgress(t *testing.T) {
	ctx := context.Background()

	t.Run("unset current is left alone", func(t *testing.T) {
		cb, store := newTestCallback(t)
		require.NoError(t, cb.IncrementProgress(ctx, 5))
		st := getStatus(t, cb, store)
		require.Nil(t, st.Current)
		require.Zero(t, store.putCount())
	})

	t.Run("clamped to total", func(t *testing.T) {
		cb, store := newTestCallback(t)
		require.NoError(t, cb.UpdateProgress(ctx, 9, 10))
		require.NoError(t, cb.IncrementProgress(ctx, 5))
		require.Equal(t, "10 of 10", getStatus(t, cb, store).ProgressString())
	})

	t.Run("no total", func(t *testing.T) {
		cb, store := newTestCallback(t)
		require.NoError(t, cb.mutate(ctx, func(st *Status) error {
			st.Current = int64p(2)
			return nil
		}))
		require.NoError(t, cb.IncrementProgress(ctx, 3))
		require.Equal(t, "5", getStatus(t, cb, store).ProgressString())
	})

	t.Run("floors at zero", func(t *testing.T) {
		cb, store := newTestCallback(t)
		require.NoError(t, cb.UpdateProgress(ctx, 2, 10))
		require.NoError(t, cb.IncrementProgress(ctx, -5))
		require.Equal(t, "0 of 10", getStatus(t, cb, store).ProgressString())
	})
}

func TestCallback_ClearProgress(t *testing.T) {
	ctx := context.Background()
	cb, store := newTestCallback(t)

	require.NoError(t, cb.UpdateMessageAndProgress(ctx, "busy", 1, 2))
	require.NoError(t, cb.ClearProgress(ctx))

	st := getStatus(t, cb, store)
	require.Nil(t, st.Current)
	require.Nil(t, st.Total)
	require.Equal(t, "busy", st.Message)
}

func TestCallback_TerminalRecordIsFrozen(t *testing.T) {
	ctx := context.Background()
	cb, store := newTestCallback(t)

	require.NoError(t, update(ctx, store, cb.key, func(st *Status) error {
		st.finish(nil, time.Now())
		return nil
	}))
	puts := store.putCount()

	require.NoError(t, cb.UpdateMessage(ctx, "too late"))
	require.NoError(t, cb.UpdateProgress(ctx, 1, 1))
	require.NoError(t, cb.ClearProgress(ctx))

	st := getStatus(t, cb, store)
	require.Equal(t, StateComplete, st.State)
	require.Empty(t, st.Message)
	require.Nil(t, st.Current)
	require.Equal(t, puts, store.putCount())
}

func TestCallback_WasCancelRequested(t *testing.T) {
	ctx := context.Background()
	cb, store := newTestCallback(t)

	require.False(t, cb.WasCancelRequested(ctx))

	require.NoError(t, update(ctx, store, cb.key, func(st *Status) error {
		st.CancelRequested = true
		return nil
	}))
	require.True(t, cb.WasCancelRequested(ctx))

	store.getErr = errors.New("store down")
	require.False(t, cb.WasCancelRequested(ctx))
}

func TestCallback_MissingRecord(t *testing.T) {
	ctx := context.Background()
	cb, _ := newTestCallback(t)
	cb.key.JobID = uuid.New()

	require.True(t, IsNotFound(cb.UpdateMessage(ctx, "nobody home")))
	require.False(t, cb.WasCancelRequested(ctx))
}

func TestNopCallback(t *testing.T) {
	ctx := context.Background()
	cb := NewNopCallback(zerolog.Nop())

	require.NotEqual(t, uuid.Nil, cb.JobID())
	require.NoError(t, cb.UpdateMessage(ctx, "x"))
	require.NoError(t, cb.UpdateProgress(ctx, 1, 2))
	require.NoError(t, cb.UpdateMessageAndProgress(ctx, "x", 1, 2))
	require.NoError(t, cb.UpdateProgressMonotonic(ctx, 1, 2))
	require.NoError(t, cb.IncrementProgress(ctx, 1))
	require.NoError(t, cb.ClearProgress(ctx))
	require.False(t, cb.WasCancelRequested(ctx))
}
