package scheduler

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/macropower/toxwatch/pkg/event"
	"github.com/macropower/toxwatch/pkg/status"
)

type handle struct {
	// Nil while the unit is pending.
	proc Process
}

// generation is the set of units started for one trigger.
type generation struct {
	startedAt time.Time
	ctx       context.Context //nolint:containedctx // Carries the generation span to launches.
	span      trace.Span
	handles   map[string]*handle
	trigger   event.Event
	units     []string
	pending   []string
	number    uint64
	reported  bool
	ended     bool
}

func newGeneration(ctx context.Context, span trace.Span, number uint64, trigger event.Event, units []string) *generation {
	g := &generation{
		ctx:       ctx,
		span:      span,
		number:    number,
		trigger:   trigger,
		startedAt: time.Now(),
		handles:   make(map[string]*handle, len(units)),
		pending:   append([]string(nil), units...),
	}
	for _, u := range units {
		g.handles[u] = &handle{}
	}

	g.units = unitNames(g.handles)

	return g
}

func (g *generation) live() int {
	n := 0
	for _, h := range g.handles {
		if h.proc == nil {
			continue
		}

		if _, exited := h.proc.ExitStatus(); !exited {
			n++
		}
	}

	return n
}

func (g *generation) snapshot() status.Snapshot {
	trigger := g.trigger
	snap := status.Snapshot{
		Generation: g.number,
		Trigger:    &trigger,
		StartedAt:  g.startedAt,
		Units:      make([]status.Unit, 0, len(g.units)),
	}

	for _, name := range g.units {
		snap.Units = append(snap.Units, status.Unit{Name: name, State: g.state(name)})
	}

	return snap
}

func (g *generation) state(unit string) status.State {
	h := g.handles[unit]
	if h.proc == nil {
		return status.StatePending
	}

	code, exited := h.proc.ExitStatus()

	switch {
	case !exited:
		return status.StateRunning
	case code == 0:
		return status.StatePassed
	default:
		return status.StateFailed
	}
}

func (g *generation) end() {
	if g.ended {
		return
	}

	g.ended = true
	g.span.End()
}
