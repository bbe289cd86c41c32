package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/macropower/toxwatch/api/v1beta1"
	"github.com/macropower/toxwatch/api/v1beta1/configs"
	"github.com/macropower/toxwatch/pkg/config"
	"github.com/macropower/toxwatch/pkg/controller"
	"github.com/macropower/toxwatch/pkg/event"
	"github.com/macropower/toxwatch/pkg/execs"
	"github.com/macropower/toxwatch/pkg/log"
	"github.com/macropower/toxwatch/pkg/scheduler"
	"github.com/macropower/toxwatch/pkg/status"
	"github.com/macropower/toxwatch/pkg/tox"
	"github.com/macropower/toxwatch/pkg/version"
	"github.com/macropower/toxwatch/pkg/watch"
)

const (
	cmdExamples = `  # Watch the current directory:
  toxwatch

  # Watch a project, running at most two environments at once:
  toxwatch ./myproject -n 2

  # Only run the lint and py312 environments:
  toxwatch -e lint,py312

  # Run every environment except docs:
  toxwatch -o docs

  # Run tox through uv:
  toxwatch --command 'uvx tox -e {env}'

  # Ignore deletions:
  toxwatch --filter 'fs.event != fs.DELETE'

  # Print the effective configuration:
  toxwatch --show-config`

	traceShutdownTimeout = 5 * time.Second
)

var errNotDirectory = errors.New("not a directory")

type RunArgs struct {
	*RootArgs

	Path         string
	ConfigPath   string
	Command      string
	Filter       string
	Envs         []string
	Omit         []string
	Concurrency  int
	Debounce     time.Duration
	PollInterval time.Duration
	StopTimeout  time.Duration
	WriteConfig  bool
	ShowConfig   bool
}

func NewRunArgs(rootArgs *RootArgs) *RunArgs {
	return &RunArgs{
		RootArgs: rootArgs,
	}
}

func (ra *RunArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&ra.Concurrency, "concurrency", "n", scheduler.DefaultBudget(),
		"Maximum number of environments run at once, 0 selects the number of CPUs capped at 8")
	cmd.Flags().StringSliceVarP(&ra.Envs, "env", "e", nil, "Only run these environments")
	cmd.Flags().StringSliceVarP(&ra.Omit, "omit", "o", nil, "Never run these environments")
	cmd.Flags().StringVar(&ra.Command, "command", execs.DefaultCommandLine,
		fmt.Sprintf("Command run for each environment, %q is replaced with the environment name", execs.UnitPlaceholder))
	cmd.Flags().StringVar(&ra.Filter, "filter", "", "CEL expression over file and fs.event selecting the changes that trigger a run")
	cmd.Flags().DurationVar(&ra.Debounce, "debounce", configs.DefaultDebounce, "Minimum time between two accepted changes")
	cmd.Flags().DurationVar(&ra.PollInterval, "poll-interval", configs.DefaultPollInterval, "How often running environments are checked")
	cmd.Flags().DurationVar(&ra.StopTimeout, "stop-timeout", configs.DefaultStopTimeout,
		"How long a superseded environment may take to exit after SIGTERM before it is killed")
	cmd.Flags().StringVar(&ra.ConfigPath, "config", "", "Path to the project configuration file, discovered from the project root by default")
	cmd.Flags().BoolVar(&ra.WriteConfig, "write-config", false, "Write the default configuration file into the project root and exit")
	cmd.Flags().BoolVar(&ra.ShowConfig, "show-config", false, "Print the effective configuration and exit")

	err := cmd.MarkFlagFilename("config", "yaml", "yml")
	if err != nil {
		panic(fmt.Errorf("mark config flag: %w", err))
	}
}

func NewRunCmd(ra *RunArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:               "run [path]",
		Short:             "Default command, can be used explicitly if the path is ambiguous",
		Example:           cmdExamples,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: runCompletion,
		RunE: func(cmd *cobra.Command, args []string) error {
			ra.Path = "."
			if len(args) > 0 {
				ra.Path = args[0]
			}

			return run(cmd, ra)
		},
	}
	ra.AddFlags(cmd)

	bindEnvVars(cmd)

	return cmd
}

func runCompletion(_ *cobra.Command, args []string, _ string) ([]cobra.Completion, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return nil, cobra.ShellCompDirectiveFilterDirs
	}

	return nil, cobra.ShellCompDirectiveNoFileComp
}

func run(cmd *cobra.Command, ra *RunArgs) error {
	ctx := cmd.Context()

	root, err := resolveRoot(ra.Path)
	if err != nil {
		return err
	}

	if ra.WriteConfig {
		path := ra.ConfigPath
		if path == "" {
			path = filepath.Join(root, configs.FileNames[0])
		}

		return configs.WriteDefault(path, false) //nolint:wrapcheck // Already wrapped.
	}

	cfg, err := loadConfig(root, ra.ConfigPath, isTerminal(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}

	err = applyFlags(cmd, ra, cfg)
	if err != nil {
		return err
	}

	if ra.ShowConfig {
		b, err := cfg.MarshalYAML()
		if err != nil {
			return err //nolint:wrapcheck // Already wrapped.
		}

		_, err = cmd.OutOrStdout().Write(b)
		if err != nil {
			return fmt.Errorf("write config: %w", err)
		}

		return nil
	}

	if ra.TraceEndpoint != "" {
		shutdown, err := setupTracing(ctx, ra.TraceEndpoint)
		if err != nil {
			return err
		}

		defer func() {
			sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), traceShutdownTimeout)
			defer cancel()

			err := shutdown(sctx)
			if err != nil {
				slog.Warn("shutdown tracing", slog.Any("error", err))
			}
		}()
	}

	out := cmd.OutOrStdout()
	if isTerminal(out) {
		// The status line owns the terminal, so hold logs until exit.
		logBuf := log.NewCircularBuffer(log.DefaultBufferCapacity)

		logHandler, err := log.CreateHandlerWithStrings(logBuf, ra.LogLevel, ra.LogFormat)
		if err != nil {
			return fmt.Errorf("create log handler: %w", err)
		}

		prev := slog.Default()
		slog.SetDefault(slog.New(logHandler))

		defer func() {
			slog.SetDefault(prev)
			flushLogs(cmd.ErrOrStderr(), logBuf)
		}()
	}

	slog.Debug("starting",
		slog.String("version", version.String()),
		slog.String("root", root),
		slog.String("command", cfg.Command.String()),
		slog.Int("concurrency", cfg.Concurrency),
	)

	ctl, err := newController(ctx, root, cfg, status.NewRenderer(out))
	if err != nil {
		return err
	}

	return ctl.Run(ctx) //nolint:wrapcheck // Already wrapped.
}

// newController wires the queue, watcher, launcher and scheduler for root.
func newController(ctx context.Context, root string, cfg *configs.Config, renderer *status.Renderer) (*controller.Controller, error) {
	queue := event.NewQueue(event.WithSpacing(cfg.Debounce.Std()))

	command := *cfg.Command
	command.SetBaseEnv(os.Environ())

	launcher, err := execs.NewLauncher(command, execs.WithStopTimeout(cfg.StopTimeout.Std()))
	if err != nil {
		return nil, fmt.Errorf("create launcher: %w", err)
	}

	watcher, err := watch.New(ctx, root, queue.Submit, cfg.Watch.Opts()...)
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	sched, err := scheduler.New(root, queue,
		scheduler.EnumeratorFunc(tox.Discover),
		scheduler.LauncherFunc(func(ctx context.Context, unit, dir string) scheduler.Process {
			return launcher.Launch(ctx, unit, dir)
		}),
		scheduler.WithBudget(cfg.Concurrency),
		scheduler.WithAllow(cfg.Envs...),
		scheduler.WithDeny(cfg.Omit...),
		scheduler.WithPollInterval(cfg.PollInterval.Std()),
		scheduler.WithRenderer(renderer),
	)
	if err != nil {
		watcher.Close()

		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	return controller.New(queue, watcher, sched,
		controller.WithLock(controller.LockPath(root)),
		controller.WithClearer(renderer),
	), nil
}

func resolveRoot(path string) (string, error) {
	root, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("project root: %w", err)
	}

	if !info.IsDir() {
		return "", fmt.Errorf("project root %s: %w", root, errNotDirectory)
	}

	return root, nil
}

// loadConfig loads the configuration at path, or the one discovered from
// root when path is empty. Without a file the defaults are returned.
func loadConfig(root, path string, colored bool) (*configs.Config, error) {
	if path == "" {
		found, err := configs.Find(root)
		if err != nil {
			return nil, err //nolint:wrapcheck // Already wrapped.
		}

		if found == "" {
			slog.Debug("no configuration file found, using defaults", slog.String("root", root))

			return configs.New(), nil
		}

		path = found
	}

	cl, err := config.NewLoaderFromFile(path, configs.NewBlank, configs.DefaultValidator, config.WithColor(colored))
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	err = cl.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cfg, err := cl.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	slog.Debug("loaded configuration", slog.String("path", path))

	return cfg, nil
}

// applyFlags overrides cfg with every flag set on the command line or
// through the environment, then fills the remaining automatic values.
func applyFlags(cmd *cobra.Command, ra *RunArgs, cfg *configs.Config) error {
	flags := cmd.Flags()

	if isExplicit(flags, "concurrency") {
		cfg.Concurrency = ra.Concurrency
	}

	if isExplicit(flags, "env") {
		cfg.Envs = ra.Envs
	}

	if isExplicit(flags, "omit") {
		cfg.Omit = ra.Omit
	}

	if isExplicit(flags, "command") {
		c, err := execs.ParseCommandLine(ra.Command, nil)
		if err != nil {
			return fmt.Errorf("--command: %w", err)
		}

		cfg.Command = &c
	}

	if isExplicit(flags, "filter") {
		cfg.Watch.Filter = ra.Filter
	}

	if isExplicit(flags, "debounce") {
		cfg.Debounce = v1beta1.Duration(ra.Debounce)
	}

	if isExplicit(flags, "poll-interval") {
		cfg.PollInterval = v1beta1.Duration(ra.PollInterval)
	}

	if isExplicit(flags, "stop-timeout") {
		cfg.StopTimeout = v1beta1.Duration(ra.StopTimeout)
	}

	cfg.EnsureDefaults()

	if cfg.Concurrency == 0 {
		cfg.Concurrency = scheduler.DefaultBudget()
	}

	err := cfg.Validate()
	if err != nil {
		return err //nolint:wrapcheck // Already wrapped.
	}

	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)

	return ok && term.IsTerminal(int(f.Fd()))
}

func flushLogs(w io.Writer, buf *log.CircularBuffer) {
	if buf.Len() == 0 {
		return
	}

	slog.Debug("flush logs to console",
		slog.Int("count", buf.Len()),
		slog.Int("max", buf.Capacity()),
		slog.Int("dropped", buf.Dropped()),
	)

	_, err := buf.WriteTo(w)
	if err != nil {
		panic(err)
	}
}
