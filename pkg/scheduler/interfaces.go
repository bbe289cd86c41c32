package scheduler

import (
	"context"

	"github.com/macropower/toxwatch/pkg/event"
	"github.com/macropower/toxwatch/pkg/status"
)

// Process is a launched unit.
type Process interface {
	// Poll reports, without blocking, whether the process exit was observed
	// by this call.
	Poll() bool
	// ExitStatus returns the exit status once observed.
	ExitStatus() (int, bool)
	// Terminate stops the process. It must be idempotent.
	Terminate(ctx context.Context) error
}

// Launcher starts the process for a unit in dir. Launch must not block on
// the process and must report spawn failures through an already-exited
// [Process].
type Launcher interface {
	Launch(ctx context.Context, unit, dir string) Process
}

// LauncherFunc adapts a function to [Launcher].
type LauncherFunc func(ctx context.Context, unit, dir string) Process

// Launch calls f.
//
//nolint:ireturn // Must satisfy [Launcher].
func (f LauncherFunc) Launch(ctx context.Context, unit, dir string) Process {
	return f(ctx, unit, dir)
}

// Enumerator lists the units defined for root.
type Enumerator interface {
	Discover(ctx context.Context, root string) ([]string, error)
}

// EnumeratorFunc adapts a function to [Enumerator].
type EnumeratorFunc func(ctx context.Context, root string) ([]string, error)

// Discover calls f.
func (f EnumeratorFunc) Discover(ctx context.Context, root string) ([]string, error) {
	return f(ctx, root)
}

// Source yields trigger events without blocking. [event.Queue] is the
// usual source.
type Source interface {
	TakeNonBlocking() (event.Event, bool)
}

// Renderer draws a snapshot after every state change.
type Renderer interface {
	Render(s status.Snapshot) error
}
