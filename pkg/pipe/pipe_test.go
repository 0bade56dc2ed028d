package pipe

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultCapacity(t *testing.T) {
	require.Equal(t, DefaultCapacity, New[int](0).Capacity())
	require.Equal(t, DefaultCapacity, New[int](-5).Capacity())
	require.Equal(t, 3, New[int](3).Capacity())
}

func TestRecordPipe_AddDrainOrder(t *testing.T) {
	ctx := context.Background()
	p := New[int](10)

	require.NoError(t, p.AddAll(ctx, []int{1, 2, 3, 4, 5}))
	require.Equal(t, 5, p.CountAvailable())

	require.Equal(t, []int{1, 2}, p.Drain(2))
	require.Equal(t, 3, p.CountAvailable())

	require.Equal(t, []int{3, 4, 5}, p.Drain(0))
	require.Zero(t, p.CountAvailable())
	require.Nil(t, p.Drain(10))
}

func TestRecordPipe_AddBlocksWhileFull(t *testing.T) {
	ctx := context.Background()
	p := New[string](2)
	require.NoError(t, p.AddAll(ctx, []string{"a", "b"}))

	added := make(chan error, 1)
	go func() { added <- p.Add(ctx, "c") }()

	select {
	case <-added:
		t.Fatal("Add returned while the pipe was full")
	case <-time.After(30 * time.Millisecond):
	}

	require.Equal(t, []string{"a"}, p.Drain(1))
	select {
	case err := <-added:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Add did not resume after a drain")
	}
	require.Equal(t, []string{"b", "c"}, p.Drain(0))
}

func TestRecordPipe_AddHonorsContext(t *testing.T) {
	p := New[int](1)
	require.NoError(t, p.Add(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, p.Add(ctx, 2), context.DeadlineExceeded)
	require.Equal(t, 1, p.CountAvailable())
}

func TestRecordPipe_Terminate(t *testing.T) {
	ctx := context.Background()
	p := New[int](2)
	require.NoError(t, p.AddAll(ctx, []int{1, 2}))

	blocked := make(chan error, 1)
	go func() { blocked <- p.Add(ctx, 3) }()
	time.Sleep(10 * time.Millisecond)

	p.Terminate()
	p.Terminate()
	require.True(t, p.Terminated())

	select {
	case err := <-blocked:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("blocked writer was not released by Terminate")
	}

	require.NoError(t, p.Add(ctx, 4))
	require.Equal(t, int64(2), p.Discarded())

	// Buffered records survive termination.
	require.Equal(t, []int{1, 2}, p.Drain(0))
	require.Zero(t, p.CountAvailable())
}

func TestRecordPipe_DrainTo(t *testing.T) {
	ctx := context.Background()
	p := New[int](10)
	require.NoError(t, p.AddAll(ctx, []int{1, 2, 3, 4}))

	var sum int
	n, err := p.DrainTo(3, func(v int) error {
		sum += v
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 6, sum)

	boom := errors.New("reject")
	n, err = p.DrainTo(0, func(int) error { return boom })
	require.ErrorIs(t, err, boom)
	assert.Zero(t, n)
	assert.Zero(t, p.CountAvailable())
}

func TestRecordPipe_ConcurrentProducersAndConsumer(t *testing.T) {
	ctx := context.Background()
	p := New[int](8)

	const producers, perProducer = 4, 250
	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				assert.NoError(t, p.Add(ctx, j))
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	total := 0
	for {
		total += len(p.Drain(3))
		select {
		case <-done:
			total += len(p.Drain(0))
			require.Equal(t, producers*perProducer, total)
			return
		default:
		}
	}
}
