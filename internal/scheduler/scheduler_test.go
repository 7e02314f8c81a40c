package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsNonPositiveInterval(t *testing.T) {
	_, err := New(Options{}, zerolog.Nop())
	require.Error(t, err)
}

func TestNextTick(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 3, 20, 0, time.UTC)

	aligned, err := New(Options{Interval: 5 * time.Minute, AlignToBucket: true}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 5, 0, 0, time.UTC), aligned.nextTick(now))

	onBoundary := time.Date(2024, 5, 1, 12, 5, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 10, 0, 0, time.UTC), aligned.nextTick(onBoundary))

	free, err := New(Options{Interval: 5 * time.Minute}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, now.Add(5*time.Minute), free.nextTick(now))
}

func TestRunOnStartAndContinueAfterFailure(t *testing.T) {
	s, err := New(Options{Interval: 10 * time.Millisecond, RunOnStart: true}, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(context.Context, time.Time) error {
			if calls.Add(1) >= 3 {
				cancel()
			}
			return errors.New("provider down")
		})
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestStartupDelayHonoursCancel(t *testing.T) {
	s, err := New(Options{Interval: time.Hour, StartupDelay: time.Hour}, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = s.Run(ctx, func(context.Context, time.Time) error {
		t.Fatal("job must not run")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
