package controller_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/toxwatch/pkg/controller"
	"github.com/macropower/toxwatch/pkg/event"
)

var errWatcherBroke = errors.New("inotify overflow")

type runnerFunc func(ctx context.Context) error

func (f runnerFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// blockUntilDone returns a runner that records when it stopped.
func blockUntilDone(stopped *atomic.Bool) runnerFunc {
	return func(ctx context.Context) error {
		<-ctx.Done()
		stopped.Store(true)

		return nil
	}
}

type clearer struct {
	cleared atomic.Int32
}

func (c *clearer) Clear() error {
	c.cleared.Add(1)

	return nil
}

func TestController_Shutdown(t *testing.T) {
	t.Parallel()

	var watcherStopped, schedulerStopped atomic.Bool

	q := event.NewQueue()
	cl := &clearer{}
	c := controller.New(q, blockUntilDone(&watcherStopped), blockUntilDone(&schedulerStopped),
		controller.WithClearer(cl),
	)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)

	go func() {
		done <- c.Run(ctx)
	}()

	require.Eventually(t, func() bool { return q.Len() == 1 }, 5*time.Second, 5*time.Millisecond)

	e, ok := q.TakeNonBlocking()
	require.True(t, ok)
	assert.Equal(t, event.KindInitial, e.Kind)

	cancel()
	require.NoError(t, <-done)
	assert.True(t, watcherStopped.Load())
	assert.True(t, schedulerStopped.Load())
	assert.Equal(t, int32(1), cl.cleared.Load())
}

func TestController_WatcherError(t *testing.T) {
	t.Parallel()

	var schedulerStopped atomic.Bool

	failing := runnerFunc(func(context.Context) error {
		return errWatcherBroke
	})

	cl := &clearer{}
	c := controller.New(event.NewQueue(), failing, blockUntilDone(&schedulerStopped),
		controller.WithClearer(cl),
	)

	err := c.Run(t.Context())
	require.ErrorIs(t, err, errWatcherBroke)
	assert.True(t, schedulerStopped.Load(), "scheduler is stopped when the watcher fails")
	assert.Equal(t, int32(1), cl.cleared.Load())
}

func TestController_Lock(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	lock := controller.LockPath(root)
	assert.Equal(t, filepath.Join(root, ".tox", ".toxwatch.lock"), lock)

	var stopped1, stopped2 atomic.Bool

	started := make(chan struct{})
	first := controller.New(event.NewQueue(),
		runnerFunc(func(ctx context.Context) error {
			close(started)
			<-ctx.Done()

			return nil
		}),
		blockUntilDone(&stopped1),
		controller.WithLock(lock),
	)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)

	go func() {
		done <- first.Run(ctx)
	}()

	<-started

	second := controller.New(event.NewQueue(), blockUntilDone(&stopped2), blockUntilDone(&stopped2),
		controller.WithLock(lock),
	)
	err := second.Run(t.Context())
	require.ErrorIs(t, err, controller.ErrLocked)
	assert.False(t, stopped2.Load(), "nothing runs without the lock")

	cancel()
	require.NoError(t, <-done)

	// Released on return.
	noop := runnerFunc(func(context.Context) error { return nil })
	third := controller.New(event.NewQueue(), noop, noop, controller.WithLock(lock))
	require.NoError(t, third.Run(t.Context()))
}
