package status_test

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/toxwatch/pkg/event"
	"github.com/macropower/toxwatch/pkg/status"
)

func snapshot(trigger event.Event, units ...status.Unit) status.Snapshot {
	return status.Snapshot{
		Generation: 1,
		Trigger:    &trigger,
		Units:      units,
	}
}

func TestRenderer_Render(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		snap status.Snapshot
		want string
	}{
		"initial": {
			snap: snapshot(event.Initial(),
				status.Unit{Name: "lint", State: status.StateRunning},
				status.Unit{Name: "py38", State: status.StatePending},
			),
			want: "\r\x1b[Klint py38 INITIAL",
		},
		"modify": {
			snap: snapshot(event.Modified("src/app.py"),
				status.Unit{Name: "py38", State: status.StatePassed},
				status.Unit{Name: "py39", State: status.StateFailed},
			),
			want: "\r\x1b[Kpy38 py39 MODIFY src/app.py",
		},
		"no units": {
			snap: snapshot(event.Deleted("tox.ini")),
			want: "\r\x1b[KDELETE tox.ini",
		},
		"before first generation": {
			snap: status.Snapshot{},
			want: "\r\x1b[K",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer

			r := status.NewRenderer(&buf, status.WithColorProfile(termenv.Ascii))
			require.NoError(t, r.Render(tc.snap))
			assert.Equal(t, tc.want, buf.String())
		})
	}
}

func TestRenderer_Colors(t *testing.T) {
	t.Parallel()

	r := status.NewRenderer(&bytes.Buffer{}, status.WithColorProfile(termenv.ANSI))
	line := r.Line(snapshot(event.Modified("a.py"),
		status.Unit{Name: "docs", State: status.StatePending},
		status.Unit{Name: "lint", State: status.StateRunning},
		status.Unit{Name: "py38", State: status.StatePassed},
		status.Unit{Name: "py39", State: status.StateFailed},
	))

	assert.Contains(t, line, "\x1b[90mdocs")
	assert.Contains(t, line, "\x1b[93mlint")
	assert.Contains(t, line, "\x1b[92mpy38")
	assert.Contains(t, line, "\x1b[91mpy39")
	assert.Contains(t, line, "\x1b[96mMODIFY")
	assert.Contains(t, line, "\x1b[97m a.py")
	assert.Equal(t, "docs lint py38 py39 MODIFY a.py", ansi.Strip(line))
}

func TestRenderer_Truncate(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	r := status.NewRenderer(&buf,
		status.WithColorProfile(termenv.ANSI),
		status.WithWidth(func() int { return 12 }),
	)
	require.NoError(t, r.Render(snapshot(event.Modified("src/very/long/path.py"),
		status.Unit{Name: "py38", State: status.StateRunning},
		status.Unit{Name: "py39", State: status.StateRunning},
	)))

	line := strings.TrimPrefix(buf.String(), "\r"+ansi.EraseLineRight)
	assert.LessOrEqual(t, ansi.StringWidth(line), 11)
	assert.True(t, strings.HasPrefix(ansi.Strip(line), "py38"))
}

func TestRenderer_Clear(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	r := status.NewRenderer(&buf, status.WithColorProfile(termenv.Ascii))
	require.NoError(t, r.Clear())
	assert.Equal(t, "\r\x1b[K", buf.String())
}

func TestRenderer_Concurrent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	r := status.NewRenderer(&buf, status.WithColorProfile(termenv.Ascii))
	snap := snapshot(event.Initial(), status.Unit{Name: "py38", State: status.StateRunning})

	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			assert.NoError(t, r.Render(snap))
		})
		wg.Go(func() {
			assert.NoError(t, r.Clear())
		})
	}

	wg.Wait()

	// Every write is a complete sequence.
	for part := range strings.SplitSeq(strings.TrimPrefix(buf.String(), "\r"), "\r") {
		assert.Contains(t, []string{"\x1b[K", "\x1b[Kpy38 INITIAL"}, part)
	}
}

func TestSnapshot(t *testing.T) {
	t.Parallel()

	snap := snapshot(event.Modified("a.py"),
		status.Unit{Name: "a", State: status.StatePassed},
		status.Unit{Name: "b", State: status.StateFailed},
		status.Unit{Name: "c", State: status.StatePassed},
	)
	assert.Equal(t, 2, snap.Count(status.StatePassed))
	assert.Equal(t, 1, snap.Count(status.StateFailed))
	assert.True(t, snap.Done())
	assert.Equal(t, "MODIFY a.py", snap.Reason())

	snap.Units[0].State = status.StateRunning
	assert.False(t, snap.Done())

	assert.Empty(t, status.Snapshot{}.Reason())
	assert.Equal(t, "running", status.StateRunning.String())
}
