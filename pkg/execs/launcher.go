package execs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/macropower/toxwatch/pkg/log"
)

// Launcher starts a [Command] template for individual units.
type Launcher struct {
	tracer      trace.Tracer
	cmd         Command
	stopTimeout time.Duration
}

// LauncherOpt configures a [Launcher].
type LauncherOpt func(*Launcher)

// WithStopTimeout sets the grace period between SIGTERM and SIGKILL for
// processes started by the launcher.
func WithStopTimeout(d time.Duration) LauncherOpt {
	return func(l *Launcher) {
		l.stopTimeout = d
	}
}

// NewLauncher creates a new [Launcher] for the given command template.
func NewLauncher(cmd Command, opts ...LauncherOpt) (*Launcher, error) {
	if cmd.Command == "" {
		return nil, ErrEmptyCommand
	}

	err := cmd.CompilePatterns()
	if err != nil {
		return nil, fmt.Errorf("compile command patterns: %w", err)
	}

	l := &Launcher{
		tracer:      otel.Tracer("launcher"),
		cmd:         cmd,
		stopTimeout: DefaultStopTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}

	return l, nil
}

// Launch starts the command for unit in dir.
// See [Start] for how spawn failures are reported.
func (l *Launcher) Launch(ctx context.Context, unit, dir string) *Process {
	c := l.cmd.ForUnit(unit)

	ctx, span := l.tracer.Start(ctx, "launch", trace.WithAttributes(
		attribute.String("unit", unit),
		attribute.String("command", c.String()),
		attribute.String("path", dir),
	))
	defer span.End()

	p := Start(ctx, unit, dir, c, l.stopTimeout)
	if err := p.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "spawn failed")
		log.WithContext(ctx).WarnContext(ctx, "could not start unit",
			slog.String("unit", unit),
			slog.Any("error", err),
		)

		return p
	}

	span.SetAttributes(attribute.Int("pid", p.Pid()))
	log.WithContext(ctx).DebugContext(ctx, "started unit",
		slog.String("unit", unit),
		slog.String("command", c.String()),
		slog.Int("pid", p.Pid()),
	)

	return p
}

// String returns the command template.
func (l *Launcher) String() string {
	return l.cmd.String()
}
