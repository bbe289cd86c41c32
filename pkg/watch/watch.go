// Package watch turns filesystem notifications below a project root into
// change events.
//
// Directories are watched recursively, except those matching an exclude
// pattern. File events are reported only for paths matching an include
// pattern and, if configured, a CEL filter expression over `file` and
// `fs.event` (see package expr).
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/macropower/toxwatch/pkg/event"
	"github.com/macropower/toxwatch/pkg/execs"
	"github.com/macropower/toxwatch/pkg/expr"
	"github.com/macropower/toxwatch/pkg/log"
)

var (
	// ErrWatch is returned when the filesystem watcher fails.
	ErrWatch = errors.New("watch")

	// ErrNotDirectory is returned when the watched root is not a directory.
	ErrNotDirectory = errors.New("not a directory")
)

// DefaultIncludes match the files whose changes trigger a new run.
var DefaultIncludes = []string{
	`\.py$`,
	`\.rst$`,
	`\.md$`,
	`(^|/)tox\.ini$`,
	`(^|/)setup\.cfg$`,
}

// DefaultExcludes match virtualenvs, build output and caches. Directories
// matching one of these are never watched.
var DefaultExcludes = []string{
	`(^|/)__pycache__(/|$)`,
	`(^|/)\.tox(/|$)`,
	`(^|/)\.eggs(/|$)`,
	`(^|/)[^/]*\.egg-info(/|$)`,
	`(^|/)builds?(/|$)`,
	`(^|/)dist(/|$)`,
	`(^|/)env(/|$)`,
	`(^|/)lib(/|$)`,
	`(^|/)lib64(/|$)`,
	`(^|/)develop-eggs(/|$)`,
	`(^|/)downloads(/|$)`,
	`(^|/)eggs(/|$)`,
	`(^|/)\.ropeproject(/|$)`,
	`(^|/)\.Python(/|$)`,
	`\$py\.class$`,
	`(^|/)\.git(/|$)`,
}

// Sink receives accepted change events. It reports whether the event was
// accepted; [event.Queue.Submit] is the usual sink.
type Sink func(event.Event) bool

// Watcher watches a project tree.
type Watcher struct {
	fsw         *fsnotify.Watcher
	sink        Sink
	filter      *expr.LazyProgram
	watchedDirs map[string]struct{}
	root        string
	includes    []*execs.LazyRegexp
	excludes    []*execs.LazyRegexp
}

// Opt configures a [Watcher].
type Opt func(*Watcher) error

// WithIncludes replaces the include patterns.
func WithIncludes(patterns ...string) Opt {
	return func(w *Watcher) error {
		res, err := compile(patterns)
		if err != nil {
			return fmt.Errorf("include: %w", err)
		}

		w.includes = res

		return nil
	}
}

// WithExcludes replaces the exclude patterns.
func WithExcludes(patterns ...string) Opt {
	return func(w *Watcher) error {
		res, err := compile(patterns)
		if err != nil {
			return fmt.Errorf("exclude: %w", err)
		}

		w.excludes = res

		return nil
	}
}

// WithFilter sets a CEL expression that must evaluate to true for an
// event to be reported. An empty expression disables filtering.
func WithFilter(expression string) Opt {
	return func(w *Watcher) error {
		if expression == "" {
			w.filter = nil

			return nil
		}

		env, err := expr.NewEventEnvironment()
		if err != nil {
			return fmt.Errorf("filter environment: %w", err)
		}

		program := expr.NewLazyProgram(expression, env)

		_, err = program.Get()
		if err != nil {
			return fmt.Errorf("filter: %w", err)
		}

		w.filter = program

		return nil
	}
}

// New creates a [Watcher] for root and starts watching its tree. Events are
// delivered to sink once [Watcher.Run] is called.
func New(ctx context.Context, root string, sink Sink, opts ...Opt) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", root, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWatch, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %w: %s", ErrWatch, ErrNotDirectory, abs)
	}

	w := &Watcher{
		root:        abs,
		sink:        sink,
		watchedDirs: make(map[string]struct{}),
	}

	opts = append([]Opt{WithIncludes(DefaultIncludes...), WithExcludes(DefaultExcludes...)}, opts...)
	for _, opt := range opts {
		err := opt(w)
		if err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	w.fsw, err = fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: create fsnotify watcher: %w", ErrWatch, err)
	}

	err = w.addTree(ctx, abs)
	if err != nil {
		w.Close()

		return nil, err
	}

	return w, nil
}

// Root returns the absolute path of the watched root.
func (w *Watcher) Root() string {
	return w.root
}

// Run delivers events to the sink until ctx is done, in which case it
// returns nil, or the underlying watcher fails, in which case the error
// wraps [ErrWatch]. The watcher is closed when Run returns.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Close()

	logger := log.WithContext(ctx)
	logger.DebugContext(ctx, "watching",
		slog.String("root", w.root),
		slog.Int("dirs", len(w.watchedDirs)),
	)

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return fmt.Errorf("%w: event channel closed", ErrWatch)
			}

			w.handle(ctx, evt)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return fmt.Errorf("%w: error channel closed", ErrWatch)
			}

			return fmt.Errorf("%w: %w", ErrWatch, err)
		}
	}
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() {
	err := w.fsw.Close()
	if err != nil {
		slog.Error("close watcher", slog.Any("err", err))
	}
}

// Match reports whether a change to the file at rel (slash separated,
// relative to the root) would be reported for op.
func (w *Watcher) Match(ctx context.Context, rel string, op fsnotify.Op) bool {
	if w.excluded(rel) || !w.included(rel) {
		return false
	}

	if w.filter == nil {
		return true
	}

	program, err := w.filter.Get()
	if err != nil {
		return false
	}

	ok, err := expr.EvalBool(program, expr.EventVars(rel, op))
	if err != nil {
		log.WithContext(ctx).WarnContext(ctx, "evaluate filter",
			slog.String("file", rel),
			slog.String("filter", w.filter.String()),
			slog.Any("error", err),
		)

		return false
	}

	return ok
}

func (w *Watcher) handle(ctx context.Context, evt fsnotify.Event) {
	// Metadata-only changes never trigger a run.
	if evt.Op == fsnotify.Chmod {
		return
	}

	rel, err := filepath.Rel(w.root, evt.Name)
	if err != nil {
		return
	}

	rel = filepath.ToSlash(rel)
	logger := log.WithContext(ctx).With(
		slog.String("file", rel),
		slog.String("op", evt.Op.String()),
	)

	if _, ok := w.watchedDirs[evt.Name]; ok && evt.Has(fsnotify.Remove|fsnotify.Rename) {
		// fsnotify drops the watch itself.
		delete(w.watchedDirs, evt.Name)

		return
	}

	if evt.Has(fsnotify.Create) {
		info, err := os.Lstat(evt.Name)
		if err == nil && info.IsDir() {
			if !w.excluded(rel) {
				err := w.addTree(ctx, evt.Name)
				if err != nil {
					logger.WarnContext(ctx, "watch new directory", slog.Any("error", err))
				}
			}

			return
		}
	}

	if !w.Match(ctx, rel, evt.Op) {
		return
	}

	var e event.Event
	if evt.Has(fsnotify.Remove) || evt.Has(fsnotify.Rename) {
		e = event.Deleted(rel)
	} else {
		e = event.Modified(rel)
	}

	accepted := w.sink(e)
	logger.DebugContext(ctx, "change", slog.Bool("accepted", accepted))
}

func (w *Watcher) addTree(ctx context.Context, dir string) error {
	added := 0

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path != dir && errors.Is(err, fs.ErrNotExist) {
				return nil
			}

			return err
		}

		if !d.IsDir() {
			return nil
		}

		if path != w.root {
			rel, err := filepath.Rel(w.root, path)
			if err == nil && w.excluded(filepath.ToSlash(rel)) {
				return filepath.SkipDir
			}
		}

		err = w.fsw.Add(path)
		if err != nil {
			return fmt.Errorf("add %q: %w", path, err)
		}

		w.watchedDirs[path] = struct{}{}
		added++

		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWatch, err)
	}

	log.WithContext(ctx).DebugContext(ctx, "added directory watchers",
		slog.String("path", dir),
		slog.Int("count", added),
	)

	return nil
}

func (w *Watcher) included(rel string) bool {
	for _, re := range w.includes {
		if re.MatchString(rel) {
			return true
		}
	}

	return false
}

func (w *Watcher) excluded(rel string) bool {
	for _, re := range w.excludes {
		if re.MatchString(rel) {
			return true
		}
	}

	return false
}

func compile(patterns []string) ([]*execs.LazyRegexp, error) {
	res := make([]*execs.LazyRegexp, 0, len(patterns))
	for _, p := range patterns {
		re := execs.NewLazyRegexp(p)

		_, err := re.Get()
		if err != nil {
			return nil, err //nolint:wrapcheck // Already carries the pattern.
		}

		res = append(res, re)
	}

	return res, nil
}
