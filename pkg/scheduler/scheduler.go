package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"runtime"
	"slices"
	"time"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/macropower/toxwatch/pkg/event"
	"github.com/macropower/toxwatch/pkg/log"
	"github.com/macropower/toxwatch/pkg/status"
)

const (
	// DefaultPollInterval is how long the loop sleeps when idle.
	DefaultPollInterval = 500 * time.Millisecond

	maxDefaultBudget = 8
)

// ErrInvalidBudget is returned for a concurrency budget below one.
var ErrInvalidBudget = errors.New("concurrency budget must be at least 1")

// DefaultBudget returns the number of CPUs, capped at 8.
func DefaultBudget() int {
	return min(runtime.NumCPU(), maxDefaultBudget)
}

// Scheduler owns the current generation. Its methods must be called from a
// single goroutine.
type Scheduler struct {
	tracer       trace.Tracer
	source       Source
	enumerator   Enumerator
	launcher     Launcher
	renderer     Renderer
	gen          *generation
	allow        map[string]struct{}
	deny         map[string]struct{}
	root         string
	budget       int
	pollInterval time.Duration
	generations  uint64
}

// Opt configures a [Scheduler].
type Opt func(*Scheduler)

// WithBudget sets the maximum number of concurrently running processes.
func WithBudget(n int) Opt {
	return func(s *Scheduler) {
		s.budget = n
	}
}

// WithAllow restricts units to the given names. An empty list allows all.
func WithAllow(units ...string) Opt {
	return func(s *Scheduler) {
		s.allow = set(units)
	}
}

// WithDeny excludes the given units. Deny wins over allow.
func WithDeny(units ...string) Opt {
	return func(s *Scheduler) {
		s.deny = set(units)
	}
}

// WithPollInterval sets how long [Scheduler.Run] sleeps when idle.
func WithPollInterval(d time.Duration) Opt {
	return func(s *Scheduler) {
		s.pollInterval = d
	}
}

// WithRenderer sets the renderer notified after every state change.
func WithRenderer(r Renderer) Opt {
	return func(s *Scheduler) {
		s.renderer = r
	}
}

// New creates a [Scheduler] for the project at root.
func New(root string, source Source, enumerator Enumerator, launcher Launcher, opts ...Opt) (*Scheduler, error) {
	s := &Scheduler{
		tracer:       otel.Tracer("scheduler"),
		root:         root,
		source:       source,
		enumerator:   enumerator,
		launcher:     launcher,
		budget:       DefaultBudget(),
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.budget < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBudget, s.budget)
	}

	if s.pollInterval <= 0 {
		s.pollInterval = DefaultPollInterval
	}

	return s, nil
}

// Run loops until ctx is done, then terminates every live process and
// returns. Pending units are never started after ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			break
		}

		if s.Step(ctx) {
			continue
		}

		timer.Reset(s.pollInterval)

		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	}

	s.Shutdown(context.WithoutCancel(ctx))

	return nil
}

// Step runs one loop iteration without sleeping: it handles the next event
// if there is one, otherwise it polls the live processes. It reports whether
// an event was handled.
func (s *Scheduler) Step(ctx context.Context) bool {
	e, ok := s.source.TakeNonBlocking()
	if ok {
		s.trigger(ctx, e)

		return true
	}

	s.poll(ctx)

	return false
}

// Shutdown terminates every live process of the current generation.
func (s *Scheduler) Shutdown(ctx context.Context) {
	if s.gen == nil {
		return
	}

	s.terminate(ctx, s.gen)
	s.gen.end()
}

// Snapshot returns the state of the current generation.
func (s *Scheduler) Snapshot() status.Snapshot {
	if s.gen == nil {
		return status.Snapshot{}
	}

	return s.gen.snapshot()
}

// Live returns the number of running processes.
func (s *Scheduler) Live() int {
	if s.gen == nil {
		return 0
	}

	return s.gen.live()
}

// Budget returns the concurrency budget.
func (s *Scheduler) Budget() int {
	return s.budget
}

func (s *Scheduler) trigger(ctx context.Context, e event.Event) {
	logger := log.WithContext(ctx).With(slog.String("reason", e.Reason()))

	units, err := s.enumerator.Discover(ctx, s.root)
	if err != nil {
		// The previous generation keeps running untouched.
		logger.WarnContext(ctx, "ignoring change, could not enumerate units", slog.Any("error", err))

		return
	}

	if s.gen != nil {
		s.terminate(ctx, s.gen)
		s.gen.end()
	}

	s.generations++

	units = s.filter(units)
	genCtx, span := s.tracer.Start(ctx, "generation", trace.WithAttributes(
		attribute.Int64("generation", int64(s.generations)), //nolint:gosec // G115: counter never overflows.
		attribute.String("reason", e.Reason()),
		attribute.StringSlice("units", units),
	))
	s.gen = newGeneration(genCtx, span, s.generations, e, units)

	logger.InfoContext(ctx, "starting generation",
		slog.Uint64("generation", s.generations),
		slog.Int("units", len(units)),
	)

	s.launch(ctx)
	s.render(ctx)
	s.checkDone(ctx)
}

func (s *Scheduler) filter(units []string) []string {
	out := make([]string, 0, len(units))
	for _, u := range units {
		if _, ok := s.deny[u]; ok {
			continue
		}

		if len(s.allow) > 0 {
			if _, ok := s.allow[u]; !ok {
				continue
			}
		}

		out = append(out, u)
	}

	slices.Sort(out)

	return slices.Compact(out)
}

// launch starts pending units while there is a free slot. A unit whose
// spawn failed is already terminated and does not take a slot.
func (s *Scheduler) launch(ctx context.Context) bool {
	g := s.gen
	launched := false

	for g.live() < s.budget && len(g.pending) > 0 {
		unit := g.pending[0]
		g.pending = g.pending[1:]

		//nolint:contextcheck // Launch spans belong to the generation span.
		g.handles[unit].proc = s.launcher.Launch(g.ctx, unit, s.root)
		launched = true

		if _, exited := g.handles[unit].proc.ExitStatus(); exited {
			log.WithContext(ctx).DebugContext(ctx, "unit failed to start", slog.String("unit", unit))
		}
	}

	return launched
}

func (s *Scheduler) poll(ctx context.Context) {
	g := s.gen
	if g == nil {
		return
	}

	changed := false

	for _, unit := range g.units {
		h := g.handles[unit]
		if h.proc == nil {
			continue
		}

		if _, exited := h.proc.ExitStatus(); exited {
			continue
		}

		if !h.proc.Poll() {
			continue
		}

		changed = true

		code, _ := h.proc.ExitStatus()
		log.WithContext(ctx).DebugContext(ctx, "unit finished",
			slog.String("unit", unit),
			slog.Int("status", code),
		)

		s.launch(ctx)
	}

	if changed {
		s.render(ctx)
		s.checkDone(ctx)
	}
}

// terminate stops all live processes of g in parallel and returns once
// every one of them is gone.
func (s *Scheduler) terminate(ctx context.Context, g *generation) {
	var eg errgroup.Group

	for _, unit := range g.units {
		h := g.handles[unit]
		if h.proc == nil {
			continue
		}

		if _, exited := h.proc.ExitStatus(); exited {
			continue
		}

		eg.Go(func() error {
			return h.proc.Terminate(ctx)
		})
	}

	err := eg.Wait()
	if err != nil {
		log.WithContext(ctx).WarnContext(ctx, "terminate generation",
			slog.Uint64("generation", g.number),
			slog.Any("error", err),
		)
	}

	g.pending = nil
}

func (s *Scheduler) checkDone(ctx context.Context) {
	g := s.gen
	if g.reported || g.live() > 0 || len(g.pending) > 0 {
		return
	}

	g.reported = true
	snap := g.snapshot()

	g.span.SetAttributes(
		attribute.Int("passed", snap.Count(status.StatePassed)),
		attribute.Int("failed", snap.Count(status.StateFailed)),
	)
	g.end()

	log.WithContext(ctx).InfoContext(ctx, "generation finished",
		slog.Uint64("generation", g.number),
		slog.String("reason", g.trigger.Reason()),
		slog.Int("passed", snap.Count(status.StatePassed)),
		slog.Int("failed", snap.Count(status.StateFailed)),
		slog.String("started", humanize.Time(g.startedAt)),
	)
}

func (s *Scheduler) render(ctx context.Context) {
	if s.renderer == nil {
		return
	}

	err := s.renderer.Render(s.gen.snapshot())
	if err != nil {
		log.WithContext(ctx).DebugContext(ctx, "render status", slog.Any("error", err))
	}
}

func set(units []string) map[string]struct{} {
	m := make(map[string]struct{}, len(units))
	for _, u := range units {
		m[u] = struct{}{}
	}

	return m
}

// unitNames returns the sorted keys of m.
func unitNames(m map[string]*handle) []string {
	return slices.Sorted(maps.Keys(m))
}
