package scheduler_test

import (
	"context"
	"errors"
	"sync"

	"github.com/macropower/toxwatch/pkg/event"
	"github.com/macropower/toxwatch/pkg/scheduler"
	"github.com/macropower/toxwatch/pkg/status"
)

var errNoConfig = errors.New("no tox.ini")

type fakeProcess struct {
	status     *int
	finished   *int
	unit       string
	terminated int
	mu         sync.Mutex
}

func (p *fakeProcess) Poll() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status != nil || p.finished == nil {
		return false
	}

	p.status = p.finished

	return true
}

func (p *fakeProcess) ExitStatus() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status == nil {
		return 0, false
	}

	return *p.status, true
}

func (p *fakeProcess) Terminate(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.terminated++
	if p.status == nil {
		code := -15
		p.status = &code
	}

	return nil
}

// finish makes the next Poll observe exit status code.
func (p *fakeProcess) finish(code int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.finished = &code
}

func (p *fakeProcess) terminations() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.terminated
}

type fakeLauncher struct {
	fail     map[string]bool
	procs    map[string]*fakeProcess
	launched []string
	mu       sync.Mutex
}

func newFakeLauncher(fail ...string) *fakeLauncher {
	l := &fakeLauncher{
		fail:  map[string]bool{},
		procs: map[string]*fakeProcess{},
	}
	for _, u := range fail {
		l.fail[u] = true
	}

	return l
}

//nolint:ireturn // Implements scheduler.Launcher.
func (l *fakeLauncher) Launch(_ context.Context, unit, _ string) scheduler.Process {
	l.mu.Lock()
	defer l.mu.Unlock()

	p := &fakeProcess{unit: unit}
	if l.fail[unit] {
		code := -1
		p.status = &code
	}

	l.procs[unit] = p
	l.launched = append(l.launched, unit)

	return p
}

// proc returns the latest process launched for unit.
func (l *fakeLauncher) proc(unit string) *fakeProcess {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.procs[unit]
}

func (l *fakeLauncher) launches() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]string(nil), l.launched...)
}

type fakeEnumerator struct {
	err   error
	units []string
	calls int
	mu    sync.Mutex
}

func (e *fakeEnumerator) Discover(context.Context, string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls++
	if e.err != nil {
		return nil, e.err
	}

	return append([]string(nil), e.units...), nil
}

func (e *fakeEnumerator) set(units []string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.units = units
	e.err = err
}

type fakeSource struct {
	events []event.Event
	mu     sync.Mutex
}

func (s *fakeSource) TakeNonBlocking() (event.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.events) == 0 {
		return event.Event{}, false
	}

	e := s.events[0]
	s.events = s.events[1:]

	return e, true
}

func (s *fakeSource) push(e event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, e)
}

type fakeRenderer struct {
	snaps []status.Snapshot
	mu    sync.Mutex
}

func (r *fakeRenderer) Render(s status.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snaps = append(r.snaps, s)

	return nil
}

func (r *fakeRenderer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.snaps)
}
