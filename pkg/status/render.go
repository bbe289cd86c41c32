package status

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// ANSI colors of the status line.
const (
	colorPending = lipgloss.ANSIColor(8)  // Bright black.
	colorFailed  = lipgloss.ANSIColor(9)  // Bright red.
	colorPassed  = lipgloss.ANSIColor(10) // Bright green.
	colorRunning = lipgloss.ANSIColor(11) // Bright yellow.
	colorAction  = lipgloss.ANSIColor(14) // Bright cyan.
	colorReason  = lipgloss.ANSIColor(15) // Bright white.
)

// Renderer redraws the status line in place. Render and Clear may be called
// from different goroutines; writes never interleave.
type Renderer struct {
	w      io.Writer
	width  func() int
	states map[State]lipgloss.Style
	action lipgloss.Style
	reason lipgloss.Style
	mu     sync.Mutex
}

// Opt configures a [Renderer].
type Opt func(*Renderer, *lipgloss.Renderer)

// WithColorProfile overrides the detected color profile.
func WithColorProfile(p termenv.Profile) Opt {
	return func(_ *Renderer, lr *lipgloss.Renderer) {
		lr.SetColorProfile(p)
	}
}

// WithWidth sets the function returning the available width in cells. A
// width of zero or less disables truncation.
func WithWidth(width func() int) Opt {
	return func(r *Renderer, _ *lipgloss.Renderer) {
		r.width = width
	}
}

// NewRenderer creates a [Renderer] writing to w. When w is a terminal, lines
// are truncated to its width so that a carriage return always rewinds the
// whole line.
func NewRenderer(w io.Writer, opts ...Opt) *Renderer {
	lr := lipgloss.NewRenderer(w)
	r := &Renderer{
		w:     w,
		width: terminalWidth(w),
	}

	for _, opt := range opts {
		opt(r, lr)
	}

	r.states = map[State]lipgloss.Style{
		StatePending: lr.NewStyle().Foreground(colorPending),
		StateRunning: lr.NewStyle().Foreground(colorRunning),
		StatePassed:  lr.NewStyle().Foreground(colorPassed),
		StateFailed:  lr.NewStyle().Foreground(colorFailed),
	}
	r.action = lr.NewStyle().Foreground(colorAction)
	r.reason = lr.NewStyle().Foreground(colorReason)

	return r
}

// Line formats s without any cursor control.
func (r *Renderer) Line(s Snapshot) string {
	var b strings.Builder

	for _, u := range s.Units {
		b.WriteString(r.states[u.State].Render(u.Name))
		b.WriteByte(' ')
	}

	if s.Trigger != nil {
		b.WriteString(r.action.Render(s.Trigger.Kind.String()))

		if s.Trigger.Path != "" {
			b.WriteString(r.reason.Render(" " + s.Trigger.Path))
		}
	}

	return b.String()
}

// Render redraws the status line for s.
func (r *Renderer) Render(s Snapshot) error {
	line := r.Line(s)
	if width := r.width(); width > 0 {
		line = ansi.Truncate(line, width-1, "…")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := io.WriteString(r.w, "\r"+ansi.EraseLineRight+line)
	if err != nil {
		return fmt.Errorf("write status line: %w", err)
	}

	return nil
}

// Clear erases the status line and leaves the cursor at its start.
func (r *Renderer) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := io.WriteString(r.w, "\r"+ansi.EraseLineRight)
	if err != nil {
		return fmt.Errorf("clear status line: %w", err)
	}

	return nil
}

func terminalWidth(w io.Writer) func() int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return func() int { return 0 }
	}

	fd := int(f.Fd())

	return func() int {
		width, _, err := term.GetSize(fd)
		if err != nil {
			return 0
		}

		return width
	}
}
