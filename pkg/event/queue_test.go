package event_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/toxwatch/pkg/event"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	now time.Time
	mu  sync.Mutex
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func TestQueue_DebounceBurst(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	q := event.NewQueue(event.WithClock(clock.Now), event.WithSpacing(time.Second))

	assert.True(t, q.Submit(event.Modified("a.py")))

	// Two events 0.2s apart with 1s spacing: only the first is queued.
	clock.Advance(200 * time.Millisecond)
	assert.False(t, q.Submit(event.Modified("b.py")))

	for range 4 {
		clock.Advance(100 * time.Millisecond)
		assert.False(t, q.Submit(event.Deleted("c.py")))
	}

	assert.Equal(t, 1, q.Len())

	e, ok := q.TakeNonBlocking()
	require.True(t, ok)
	assert.Equal(t, event.Modified("a.py"), e)

	_, ok = q.TakeNonBlocking()
	assert.False(t, ok)
}

func TestQueue_AcceptsAfterSpacing(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		gap  time.Duration
		want int
	}{
		"just below spacing": {gap: 999 * time.Millisecond, want: 1},
		"exactly spacing":    {gap: time.Second, want: 2},
		"well past spacing":  {gap: 5 * time.Second, want: 2},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			clock := newFakeClock()
			q := event.NewQueue(event.WithClock(clock.Now))

			q.Submit(event.Modified("a.py"))
			clock.Advance(tc.gap)
			q.Submit(event.Modified("b.py"))

			assert.Equal(t, tc.want, q.Len())
		})
	}
}

func TestQueue_DroppedEventsDoNotExtendWindow(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	q := event.NewQueue(event.WithClock(clock.Now))

	require.True(t, q.Submit(event.Modified("a.py")))

	clock.Advance(900 * time.Millisecond)
	require.False(t, q.Submit(event.Modified("a.py")))

	// 1s after the accepted event, even though only 0.1s after the dropped one.
	clock.Advance(100 * time.Millisecond)
	assert.True(t, q.Submit(event.Modified("a.py")))
}

func TestQueue_Initial(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	q := event.NewQueue(event.WithClock(clock.Now))

	q.Initial()
	q.Initial()

	// The initial trigger does not open a debounce window.
	assert.True(t, q.Submit(event.Modified("setup.py")))
	assert.Equal(t, 2, q.Len())

	e, ok := q.TakeNonBlocking()
	require.True(t, ok)
	assert.Equal(t, event.KindInitial, e.Kind)

	e, ok = q.TakeNonBlocking()
	require.True(t, ok)
	assert.Equal(t, event.KindModified, e.Kind)
}

func TestQueue_NoSpacing(t *testing.T) {
	t.Parallel()

	q := event.NewQueue(event.WithSpacing(0))
	for range 5 {
		assert.True(t, q.Submit(event.Modified("x.py")))
	}

	assert.Equal(t, 5, q.Len())
}

func TestQueue_ConcurrentSubmit(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	q := event.NewQueue(event.WithClock(clock.Now))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)

	for range 50 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if q.Submit(event.Modified("a.py")) {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, q.Len())
}

func TestEvent_Reason(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		event event.Event
		want  string
	}{
		"initial":  {event: event.Initial(), want: "INITIAL"},
		"modified": {event: event.Modified("pkg/a.py"), want: "MODIFY pkg/a.py"},
		"deleted":  {event: event.Deleted("tox.ini"), want: "DELETE tox.ini"},
		"no path":  {event: event.Event{Kind: event.KindModified}, want: "MODIFY"},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, tc.event.Reason())
		})
	}
}
