package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPeriodic_RunsAfterWarmup(t *testing.T) {
	var runs atomic.Int32

	p := NewPeriodic("test", 20*time.Millisecond, 10*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(stopped)
	}()

	assert.Equal(t, int32(0), runs.Load(), "nothing runs before the warm-up elapsed")

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestPeriodic_SkipsWhileBusy(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var runs atomic.Int32

	p := NewPeriodic("busy", 0, time.Hour, func(context.Context) error {
		if runs.Add(1) == 1 {
			close(started)
		}
		<-release
		return nil
	}, zap.NewNop())

	go p.TryRun(context.Background())
	<-started

	assert.False(t, p.TryRun(context.Background()))
	assert.False(t, p.TryRun(context.Background()))
	assert.Equal(t, int64(2), p.Skipped())

	close(release)
	require.Eventually(t, func() bool { return p.TryRun(context.Background()) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(2), runs.Load())
}

func TestPeriodic_FailedRunDoesNotStopSchedule(t *testing.T) {
	var runs atomic.Int32

	p := NewPeriodic("failing", 0, 5*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return errors.New("database unavailable")
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	require.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestPeriodic_TimeoutBoundsRun(t *testing.T) {
	p := NewPeriodic("slow", 0, time.Hour, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, zap.NewNop()).WithTimeout(10 * time.Millisecond)

	done := make(chan bool)
	go func() { done <- p.TryRun(context.Background()) }()

	select {
	case ran := <-done:
		assert.True(t, ran)
	case <-time.After(time.Second):
		t.Fatal("run was not cancelled by its timeout")
	}
}
