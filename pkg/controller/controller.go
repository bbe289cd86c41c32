// Package controller wires the watcher, the event queue and the scheduler
// together and owns their shared lifetime.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/macropower/toxwatch/pkg/log"
)

const (
	// LockFile is the project lock, relative to the project root.
	LockFile = ".tox/.toxwatch.lock"

	lockRetryInterval = 50 * time.Millisecond
	lockWait          = 250 * time.Millisecond
)

// ErrLocked is returned when another instance holds the project lock.
var ErrLocked = errors.New("another toxwatch instance is running in this project")

// Runner is a long-running component. Run returns nil when ctx is done.
type Runner interface {
	Run(ctx context.Context) error
}

// Trigger enqueues the startup trigger.
type Trigger interface {
	Initial()
}

// Clearer erases the status line.
type Clearer interface {
	Clear() error
}

// Controller runs a watcher and a scheduler until the context is done or
// the watcher fails.
type Controller struct {
	trigger   Trigger
	watcher   Runner
	scheduler Runner
	clearer   Clearer
	lockPath  string
}

// Opt configures a [Controller].
type Opt func(*Controller)

// WithLock makes [Controller.Run] hold an exclusive file lock at path.
func WithLock(path string) Opt {
	return func(c *Controller) {
		c.lockPath = path
	}
}

// WithClearer sets the status line to clear once everything has stopped.
func WithClearer(cl Clearer) Opt {
	return func(c *Controller) {
		c.clearer = cl
	}
}

// New creates a new [Controller].
func New(trigger Trigger, watcher, scheduler Runner, opts ...Opt) *Controller {
	c := &Controller{
		trigger:   trigger,
		watcher:   watcher,
		scheduler: scheduler,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// LockPath returns the default lock path for the project at root.
func LockPath(root string) string {
	return filepath.Join(root, filepath.FromSlash(LockFile))
}

// Run enqueues the initial trigger and runs the watcher and the scheduler
// until ctx is done. A watcher failure stops the scheduler, which
// terminates its processes, and is returned.
func (c *Controller) Run(ctx context.Context) error {
	logger := log.WithContext(ctx)

	if c.lockPath != "" {
		fl, err := acquireLock(ctx, c.lockPath)
		if err != nil {
			return err
		}

		defer func() {
			err := fl.Close()
			if err != nil {
				logger.DebugContext(ctx, "release lock", slog.String("path", fl.Path()), slog.Any("error", err))
			}
		}()
	}

	c.trigger.Initial()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.watcher.Run(gctx)
	})
	g.Go(func() error {
		return c.scheduler.Run(gctx)
	})

	err := g.Wait()

	if c.clearer != nil {
		clearErr := c.clearer.Clear()
		if clearErr != nil {
			logger.DebugContext(ctx, "clear status line", slog.Any("error", clearErr))
		}
	}

	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	return nil
}

func acquireLock(ctx context.Context, path string) (*flock.Flock, error) {
	err := os.MkdirAll(filepath.Dir(path), 0o750)
	if err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	fl := flock.New(path)

	lockCtx, cancel := context.WithTimeout(ctx, lockWait)
	defer cancel()

	locked, err := fl.TryLockContext(lockCtx, lockRetryInterval)
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}

	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}

	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}

	return fl, nil
}
