package schedule_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/shashiranjanraj/checkout/pkg/schedule"
)

func TestRunsImmediatelyAndOnInterval(t *testing.T) {
	var runs atomic.Int32
	s := schedule.New().WithTick(5 * time.Millisecond)
	s.Every(20 * time.Millisecond).Name("tick").Run(func(context.Context) { runs.Add(1) })

	ctx, cancel := context.WithTimeout(context.Background(), 110*time.Millisecond)
	defer cancel()
	s.Start(ctx)

	assert.GreaterOrEqual(t, runs.Load(), int32(3))
	assert.Equal(t, []string{"tick  [every 20ms]"}, s.List())
}

func TestWithoutOverlapping(t *testing.T) {
	var running, maxRunning atomic.Int32
	s := schedule.New().WithTick(2 * time.Millisecond)
	s.Every(time.Millisecond).WithoutOverlapping().Run(func(ctx context.Context) {
		n := running.Add(1)
		defer running.Add(-1)
		if n > maxRunning.Load() {
			maxRunning.Store(n)
		}
		select {
		case <-ctx.Done():
		case <-time.After(30 * time.Millisecond):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	s.Start(ctx)

	assert.Equal(t, int32(1), maxRunning.Load())
}

func TestPanickingTaskDoesNotStopScheduler(t *testing.T) {
	var runs atomic.Int32
	s := schedule.New().WithTick(2 * time.Millisecond)
	s.Every(5 * time.Millisecond).Run(func(context.Context) {
		runs.Add(1)
		panic("boom")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	s.Start(ctx)

	assert.Greater(t, runs.Load(), int32(1))
}
