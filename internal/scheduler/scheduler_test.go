package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesargomez89/streampay/internal/logger"
)

func TestRegister_InvalidSpec(t *testing.T) {
	s := New(time.Second, logger.Discard())
	err := s.Register("bad", "not a schedule", func(context.Context) error { return nil })
	assert.Error(t, err)
}

func TestRegister_Next(t *testing.T) {
	s := New(time.Second, logger.Discard())
	require.NoError(t, s.Register("aggregate", "@daily", func(context.Context) error { return nil }))
	require.NoError(t, s.Register("reconcile", "@every 5m", func(context.Context) error { return nil }))

	s.Start()
	defer s.Stop()

	next := s.Next()
	assert.Len(t, next, 2)
	assert.Contains(t, next, "aggregate")
	assert.Contains(t, next, "reconcile")
}

func TestRun_BoundedByTimeout(t *testing.T) {
	s := New(20*time.Millisecond, logger.Discard())
	var sawDeadline atomic.Bool
	s.run("slow", func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		sawDeadline.Store(ok)
		<-ctx.Done()
		return ctx.Err()
	})
	assert.True(t, sawDeadline.Load())
}

func TestRun_ErrorDoesNotPanic(t *testing.T) {
	s := New(time.Second, logger.Discard())
	assert.NotPanics(t, func() {
		s.run("failing", func(context.Context) error { return errors.New("boom") })
	})
}

func TestScheduledJobRuns(t *testing.T) {
	s := New(time.Second, logger.Discard())
	var runs atomic.Int32
	require.NoError(t, s.Register("tick", "@every 1s", func(context.Context) error {
		runs.Add(1)
		return nil
	}))
	s.Start()

	require.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
	s.Stop()
}

func TestStop_CancelsRunningJobs(t *testing.T) {
	s := New(time.Minute, logger.Discard())
	started := make(chan struct{}, 1)
	var cancelled atomic.Bool
	require.NoError(t, s.Register("long", "@every 1s", func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	}))
	s.Start()

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("job never started")
	}
	s.Stop()
	assert.True(t, cancelled.Load())
}
