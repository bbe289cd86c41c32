package execs

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/mattn/go-shellwords"
)

// UnitPlaceholder is replaced by the unit name in a [Command]'s command and
// arguments when the command is launched for a unit.
const UnitPlaceholder = "{env}"

// DefaultCommandLine runs a single tox environment.
const DefaultCommandLine = "tox -e " + UnitPlaceholder

var (
	// ErrEmptyCommand is returned when a command is empty.
	ErrEmptyCommand = errors.New("empty command")

	// ErrInvalidCommandLine is returned when a command line cannot be split into words.
	ErrInvalidCommandLine = errors.New("invalid command line")
)

// EnvFromSource represents a source for inheriting environment variables.
type EnvFromSource struct {
	// CallerRef specifies how to inherit environment variables from the caller process.
	CallerRef *CallerRef `json:"callerRef,omitempty" jsonschema:"title=Caller Reference"`
}

// CallerRef references environment variables of the toxwatch process.
type CallerRef struct {
	pattern *LazyRegexp

	// Pattern is a regex pattern for matching environment variable names.
	Pattern string `json:"pattern,omitempty" jsonschema:"title=Pattern,format=regex"`
	// Name is the specific environment variable name to inherit.
	Name string `json:"name,omitempty" jsonschema:"title=Name"`
}

// EnvVar represents an environment variable definition.
type EnvVar struct {
	// ValueFrom specifies a source for the environment variable value.
	ValueFrom *EnvVarSource `json:"valueFrom,omitempty" jsonschema:"title=Value From"`
	// Name is the environment variable name.
	Name string `json:"name" jsonschema:"title=Name,required,minLength=1"`
	// Value is the environment variable value.
	Value string `json:"value,omitempty" jsonschema:"title=Value"`
}

// EnvVarSource represents a source for an environment variable value.
type EnvVarSource struct {
	// CallerRef specifies how to get the value from the caller process environment.
	CallerRef *CallerRef `json:"callerRef,omitempty" jsonschema:"title=Caller Reference"`
}

// Compile compiles the caller reference pattern, if any.
func (c *CallerRef) Compile() error {
	if c.Pattern == "" {
		return nil
	}

	if c.pattern == nil {
		c.pattern = NewLazyRegexp(c.Pattern)
	}

	_, err := c.pattern.Get()

	return err
}

func (c *CallerRef) matches(key string) bool {
	if c.pattern == nil {
		return false
	}

	return c.pattern.MatchString(key)
}

// Command is the template of the process launched for each unit.
type Command struct {
	baseEnv map[string]string
	// Command is the executable. It may contain the unit placeholder.
	Command string `json:"command" jsonschema:"title=Command,required,minLength=1"`
	// Args contains the command line arguments. Each may contain the unit placeholder.
	Args []string `json:"args,omitempty" jsonschema:"title=Arguments" yaml:"args,flow,omitempty"`
	// Env contains environment variable definitions.
	Env []EnvVar `json:"env,omitempty" jsonschema:"title=Environment Variables"`
	// EnvFrom contains sources for inheriting environment variables.
	EnvFrom []EnvFromSource `json:"envFrom,omitempty" jsonschema:"title=Environment Variables From"`
}

// NewCommand creates a new [Command].
// It accepts a base environment, which usually will be from [os.Environ].
func NewCommand(baseEnv []string) Command {
	c := Command{
		Env:     []EnvVar{},
		EnvFrom: []EnvFromSource{},
	}
	c.SetBaseEnv(baseEnv)

	return c
}

// ParseCommandLine splits a shell-style command line such as
// "tox -e {env} -- -x" into a [Command] with the given base environment.
func ParseCommandLine(line string, baseEnv []string) (Command, error) {
	words, err := shellwords.Parse(line)
	if err != nil {
		return Command{}, fmt.Errorf("%w %q: %w", ErrInvalidCommandLine, line, err)
	}

	if len(words) == 0 {
		return Command{}, fmt.Errorf("%w %q: %w", ErrInvalidCommandLine, line, ErrEmptyCommand)
	}

	c := NewCommand(baseEnv)
	c.Command = words[0]
	c.Args = words[1:]

	return c, nil
}

// SetBaseEnv replaces the environment that essential variables and caller
// references are read from.
func (c *Command) SetBaseEnv(baseEnv []string) {
	c.baseEnv = make(map[string]string, len(baseEnv))
	for _, envVar := range baseEnv {
		if key, value, ok := strings.Cut(envVar, "="); ok {
			c.baseEnv[key] = value
		}
	}
}

// AddEnvVar adds a single environment variable.
func (c *Command) AddEnvVar(envVar EnvVar) {
	c.Env = append(c.Env, envVar)
}

// AddEnvFrom adds environment variable sources.
func (c *Command) AddEnvFrom(envFrom []EnvFromSource) {
	c.EnvFrom = append(c.EnvFrom, envFrom...)
}

// ForUnit returns a copy of the command with the unit placeholder replaced
// by unit in the command and every argument.
func (c Command) ForUnit(unit string) Command {
	out := c
	out.Command = strings.ReplaceAll(c.Command, UnitPlaceholder, unit)
	out.Args = make([]string, len(c.Args))
	for i, arg := range c.Args {
		out.Args[i] = strings.ReplaceAll(arg, UnitPlaceholder, unit)
	}

	return out
}

// GetEnv constructs the child environment, sorted by key.
func (c *Command) GetEnv() []string {
	envMap := make(map[string]string)

	// Tox itself needs these to locate interpreters and caches.
	essentialVars := []string{"PATH", "HOME", "USER", "TERM", "COLORTERM", "LANG", "TMPDIR"}
	for key, value := range c.baseEnv {
		if slices.Contains(essentialVars, key) {
			envMap[key] = value
		}
	}

	c.applyEnvFrom(envMap)
	c.applyEnv(envMap)

	env := make([]string, 0, len(envMap))
	for _, key := range slices.Sorted(maps.Keys(envMap)) {
		env = append(env, key+"="+envMap[key])
	}

	return env
}

// CompilePatterns compiles all regex patterns.
func (c *Command) CompilePatterns() error {
	for i, envVar := range c.Env {
		if envVar.ValueFrom != nil && envVar.ValueFrom.CallerRef != nil {
			err := envVar.ValueFrom.CallerRef.Compile()
			if err != nil {
				return fmt.Errorf("env[%d]: %w", i, err)
			}
		}
	}

	for i, envFromSource := range c.EnvFrom {
		if envFromSource.CallerRef != nil {
			err := envFromSource.CallerRef.Compile()
			if err != nil {
				return fmt.Errorf("envFrom[%d]: %w", i, err)
			}
		}
	}

	return nil
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Command
	}

	return c.Command + " " + strings.Join(c.Args, " ")
}

func (c *Command) applyEnvFrom(envMap map[string]string) {
	for _, envFromSource := range c.EnvFrom {
		ref := envFromSource.CallerRef
		if ref == nil {
			continue
		}

		for key, value := range c.baseEnv {
			if ref.matches(key) {
				envMap[key] = value
			}
		}

		if ref.Name != "" {
			if value, exists := c.baseEnv[ref.Name]; exists {
				envMap[ref.Name] = value
			}
		}
	}
}

func (c *Command) applyEnv(envMap map[string]string) {
	for _, envVar := range c.Env {
		if envVar.Name == "" {
			continue
		}

		if envVar.Value != "" {
			envMap[envVar.Name] = envVar.Value

			continue
		}

		if envVar.ValueFrom != nil && envVar.ValueFrom.CallerRef != nil && envVar.ValueFrom.CallerRef.Name != "" {
			if value, exists := c.baseEnv[envVar.ValueFrom.CallerRef.Name]; exists {
				envMap[envVar.Name] = value
			}
		}
	}
}
