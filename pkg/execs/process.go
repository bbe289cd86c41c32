package execs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/macropower/toxwatch/pkg/log"
)

const (
	// DefaultStopTimeout is the grace period between SIGTERM and SIGKILL.
	DefaultStopTimeout = 5 * time.Second

	// SpawnFailedStatus is the exit status recorded for a process that could
	// not be started.
	SpawnFailedStatus = -1

	// Upper bound on waiting for the exit status after SIGKILL.
	killDrainTimeout = 2 * time.Second
)

var (
	// ErrSpawn is recorded on a [Process] whose command could not be started.
	ErrSpawn = errors.New("spawn")

	// ErrOrphaned is returned by [Process.Terminate] when the process did not
	// exit even after SIGKILL.
	ErrOrphaned = errors.New("process may be orphaned")
)

// Process is the handle of one launched unit. The exit status is observed
// by [Process.Poll], which never blocks.
//
// Process is not safe for concurrent use.
type Process struct {
	startedAt time.Time
	err       error
	waitErr   error
	cmd       *exec.Cmd
	done      chan struct{}
	status    *int
	unit      string
	grace     time.Duration
}

// Start spawns c in dir without waiting for it. A spawn failure does not
// return an error: the returned process is already terminated with
// [SpawnFailedStatus] and [Process.Err] reports the cause.
func Start(ctx context.Context, unit, dir string, c Command, grace time.Duration) *Process {
	p := &Process{
		unit:      unit,
		grace:     grace,
		startedAt: time.Now(),
	}
	if p.grace <= 0 {
		p.grace = DefaultStopTimeout
	}

	if c.Command == "" {
		p.fail(ErrEmptyCommand)

		return p
	}

	//nolint:gosec // G204: Subprocess launched with a potential tainted input or cmd arguments.
	cmd := exec.Command(c.Command, c.Args...)
	cmd.Dir = dir
	cmd.Env = c.GetEnv()
	configureSysProcAttr(cmd)

	err := cmd.Start()
	if err != nil {
		p.fail(err)
		log.WithContext(ctx).DebugContext(ctx, "spawn failed",
			slog.String("unit", unit),
			slog.String("command", c.String()),
			slog.Any("error", err),
		)

		return p
	}

	p.cmd = cmd
	p.done = make(chan struct{})

	// Exactly one Wait per process; everything else selects on done.
	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()

	return p
}

// Unit returns the name of the unit this process runs.
func (p *Process) Unit() string {
	return p.unit
}

// Err returns the spawn error, if the process could not be started.
func (p *Process) Err() error {
	return p.err
}

// Pid returns the process id, or 0 if the process was never started.
func (p *Process) Pid() int {
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}

	return p.cmd.Process.Pid
}

// Runtime returns the time elapsed since the process was started.
func (p *Process) Runtime() time.Duration {
	return time.Since(p.startedAt)
}

// Poll checks, without blocking, whether the process has exited. It
// reports true only on the call that first observes the exit.
func (p *Process) Poll() bool {
	if p.status != nil || p.done == nil {
		return false
	}

	select {
	case <-p.done:
		p.record(exitStatus(p.waitErr))

		return true
	default:
		return false
	}
}

// ExitStatus returns the observed exit status. The second result is false
// while the process is running or its exit has not been polled yet.
func (p *Process) ExitStatus() (int, bool) {
	if p.status == nil {
		return 0, false
	}

	return *p.status, true
}

// Terminate stops the process and its process group: SIGTERM, then SIGKILL
// once the grace period has passed. It returns once the exit has been
// collected, or with [ErrOrphaned] if even SIGKILL did not help. Calling it
// again, or on a process that already exited or never started, is a no-op.
func (p *Process) Terminate(ctx context.Context) error {
	if p.cmd == nil {
		return nil
	}

	cmd := p.cmd
	logger := log.WithContext(ctx).With(
		slog.String("unit", p.unit),
		slog.Int("pid", cmd.Process.Pid),
	)

	defer func() {
		p.cmd = nil
		select {
		case <-p.done:
			if p.status == nil {
				p.record(exitStatus(p.waitErr))
			}
		default:
		}
	}()

	select {
	case <-p.done:
		return nil
	default:
	}

	if err := interruptProcess(cmd); err != nil {
		// Already gone; collect it with a hard upper bound.
		logger.DebugContext(ctx, "interrupt failed", slog.Any("error", err))

		if !drain(p.done, killDrainTimeout) {
			return fmt.Errorf("%w: %s: timed out draining after signal failure", ErrOrphaned, p.unit)
		}

		return nil
	}

	killTimer := time.AfterFunc(p.grace, func() {
		logger.DebugContext(ctx, "grace period expired, killing")

		_ = killProcess(cmd) //nolint:errcheck // The process may have exited in the meantime.
	})
	defer killTimer.Stop()

	if !drain(p.done, p.grace+killDrainTimeout) {
		logger.WarnContext(ctx, "process did not exit after SIGKILL")

		return fmt.Errorf("%w: %s", ErrOrphaned, p.unit)
	}

	logger.DebugContext(ctx, "terminated", slog.Duration("runtime", p.Runtime()))

	return nil
}

func (p *Process) fail(err error) {
	p.err = fmt.Errorf("%w %s: %w", ErrSpawn, p.unit, err)
	p.record(SpawnFailedStatus)
}

func (p *Process) record(status int) {
	p.status = &status
}

// drain waits for done with an upper bound and reports whether it closed.
func drain(done <-chan struct{}, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// exitStatus converts a Wait result into an exit status. Termination by a
// signal yields -1.
func exitStatus(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}

	return SpawnFailedStatus
}
