package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoll_DoublesUpToMax(t *testing.T) {
	p := NewPoll(10*time.Millisecond, 1000*time.Millisecond)

	var got []time.Duration
	for i := 0; i < 9; i++ {
		got = append(got, p.Next())
	}

	require.Equal(t, []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
		80 * time.Millisecond,
		160 * time.Millisecond,
		320 * time.Millisecond,
		640 * time.Millisecond,
		1000 * time.Millisecond,
		1000 * time.Millisecond,
	}, got)
}

func TestPoll_Reset(t *testing.T) {
	p := NewPoll(5*time.Millisecond, 100*time.Millisecond)
	p.Next()
	p.Next()
	p.Reset()
	require.Equal(t, 5*time.Millisecond, p.Next())
}

func TestPoll_NormalizesBounds(t *testing.T) {
	p := NewPoll(0, 0)
	require.Equal(t, time.Millisecond, p.Next())
	require.Equal(t, time.Millisecond, p.Next())
}

func TestPoll_SleepHonorsContext(t *testing.T) {
	p := NewPoll(time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Sleep(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRetryConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RetryConfig
		wantErr bool
	}{
		{name: "default", cfg: DefaultRetryConfig()},
		{name: "no retry", cfg: NoRetry()},
		{name: "negative attempts", cfg: RetryConfig{MaxAttempts: -1}, wantErr: true},
		{name: "multiplier below one", cfg: RetryConfig{MaxAttempts: 2, Multiplier: 0.5}, wantErr: true},
		{
			name:    "initial above max",
			cfg:     RetryConfig{MaxAttempts: 2, Multiplier: 2, InitialWait: time.Second, MaxWait: time.Millisecond},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 5 * time.Millisecond, Multiplier: 2}

	calls := 0
	err := Retry(context.Background(), cfg, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestRetry_PermanentStopsImmediately(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 5, InitialWait: time.Millisecond, MaxWait: time.Millisecond, Multiplier: 1}
	boom := errors.New("bad credentials")

	calls := 0
	err := Retry(context.Background(), cfg, func(context.Context) error {
		calls++
		return Permanent(boom)
	})

	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 2, InitialWait: time.Millisecond, MaxWait: time.Millisecond, Multiplier: 1}
	boom := errors.New("timeout")

	err := Retry(context.Background(), cfg, func(context.Context) error { return boom })

	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), "max attempts (2) exceeded")
}
