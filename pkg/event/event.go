// Package event defines the change events that trigger a new run generation
// and the debounced queue that carries them from the filesystem watcher to
// the scheduler.
package event

import "fmt"

// Kind is the kind of change that produced an [Event].
type Kind int

const (
	// KindInitial is the synthetic trigger enqueued once at startup.
	KindInitial Kind = iota
	// KindModified covers created and written files.
	KindModified
	// KindDeleted covers removed and renamed-away files.
	KindDeleted
)

func (k Kind) String() string {
	switch k {
	case KindInitial:
		return "INITIAL"
	case KindModified:
		return "MODIFY"
	case KindDeleted:
		return "DELETE"
	}

	return fmt.Sprintf("Kind(%d)", int(k))
}

// Event is a single change notification. Path is relative to the project
// root and empty for [KindInitial].
type Event struct {
	Path string
	Kind Kind
}

// Initial returns the startup trigger.
func Initial() Event {
	return Event{Kind: KindInitial}
}

// Modified returns a modification event for path.
func Modified(path string) Event {
	return Event{Kind: KindModified, Path: path}
}

// Deleted returns a deletion event for path.
func Deleted(path string) Event {
	return Event{Kind: KindDeleted, Path: path}
}

// Reason describes the event for the status line, e.g. "MODIFY src/app.py".
func (e Event) Reason() string {
	if e.Kind == KindInitial || e.Path == "" {
		return e.Kind.String()
	}

	return e.Kind.String() + " " + e.Path
}
