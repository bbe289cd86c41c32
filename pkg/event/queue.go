package event

import (
	"sync"
	"time"
)

// DefaultSpacing is the minimum time between two accepted events.
const DefaultSpacing = time.Second

// Queue is a multi-producer, single-consumer FIFO of [Event]s that debounces
// at submission time: an event arriving less than the spacing after the last
// accepted event is dropped instead of queued.
//
// Create instances with [NewQueue].
type Queue struct {
	now          func() time.Time
	lastAccepted time.Time
	items        []Event
	spacing      time.Duration
	mu           sync.Mutex
	initialSent  bool
}

// QueueOpt configures a [Queue].
type QueueOpt func(*Queue)

// WithSpacing sets the debounce spacing. Non-positive values disable
// debouncing.
func WithSpacing(d time.Duration) QueueOpt {
	return func(q *Queue) {
		q.spacing = d
	}
}

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) QueueOpt {
	return func(q *Queue) {
		q.now = now
	}
}

// NewQueue creates a new [Queue] with [DefaultSpacing].
func NewQueue(opts ...QueueOpt) *Queue {
	q := &Queue{
		now:     time.Now,
		spacing: DefaultSpacing,
	}
	for _, opt := range opts {
		opt(q)
	}

	return q
}

// Submit offers e to the queue. It reports whether e was accepted; events
// inside the debounce window of the previously accepted event are dropped.
// Safe for concurrent use.
func (q *Queue) Submit(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	if !q.lastAccepted.IsZero() && now.Sub(q.lastAccepted) < q.spacing {
		return false
	}

	q.lastAccepted = now
	q.items = append(q.items, e)

	return true
}

// Initial enqueues the startup trigger. Only the first call has an effect.
// The initial trigger does not open a debounce window, so the first real
// change is never swallowed by it.
func (q *Queue) Initial() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.initialSent {
		return
	}

	q.initialSent = true
	q.items = append(q.items, Initial())
}

// TakeNonBlocking pops the oldest queued event, if any.
func (q *Queue) TakeNonBlocking() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Event{}, false
	}

	e := q.items[0]
	q.items[0] = Event{}
	q.items = q.items[1:]

	return e, true
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}
