// Package status renders the live status line: one colored token per unit
// followed by the reason for the current run generation.
package status

import (
	"fmt"
	"time"

	"github.com/macropower/toxwatch/pkg/event"
)

// State is the lifecycle state of a unit within a generation.
type State int

const (
	// StatePending units are queued and not started yet.
	StatePending State = iota
	// StateRunning units have a live process.
	StateRunning
	// StatePassed units exited with status 0.
	StatePassed
	// StateFailed units exited with a non-zero status or could not start.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StatePassed:
		return "passed"
	case StateFailed:
		return "failed"
	}

	return fmt.Sprintf("State(%d)", int(s))
}

// Unit is the state of one unit.
type Unit struct {
	Name  string
	State State
}

// Snapshot is the state of a generation at one point in time.
type Snapshot struct {
	StartedAt time.Time
	// Trigger is nil until the first generation starts.
	Trigger *event.Event
	// Units are sorted by name.
	Units      []Unit
	Generation uint64
}

// Count returns the number of units in state s.
func (s Snapshot) Count(state State) int {
	n := 0
	for _, u := range s.Units {
		if u.State == state {
			n++
		}
	}

	return n
}

// Done reports whether no unit is pending or running.
func (s Snapshot) Done() bool {
	return s.Count(StatePending) == 0 && s.Count(StateRunning) == 0
}

// Reason returns the trigger description, or "" before the first generation.
func (s Snapshot) Reason() string {
	if s.Trigger == nil {
		return ""
	}

	return s.Trigger.Reason()
}
