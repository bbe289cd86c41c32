package watch

import (
	"fmt"
	"slices"
)

// Config configures which file changes trigger a new run.
type Config struct {
	// Filter is a CEL expression evaluated for every included change.
	// The variables `file` (path relative to the project root) and `fs.event`
	// are available, e.g. `fs.event != fs.DELETE`.
	Filter string `json:"filter,omitempty" jsonschema:"title=Filter"`
	// Include contains regexes matched against project-relative file paths.
	Include []string `json:"include,omitempty" jsonschema:"title=Include"`
	// Exclude contains regexes for paths that are never watched.
	Exclude []string `json:"exclude,omitempty" jsonschema:"title=Exclude"`
}

// NewConfig returns a [Config] with the default patterns.
func NewConfig() *Config {
	c := &Config{}
	c.EnsureDefaults()

	return c
}

// EnsureDefaults fills unset pattern lists with the defaults.
func (c *Config) EnsureDefaults() {
	if c.Include == nil {
		c.Include = slices.Clone(DefaultIncludes)
	}

	if c.Exclude == nil {
		c.Exclude = slices.Clone(DefaultExcludes)
	}
}

// Validate compiles all patterns and the filter expression.
func (c *Config) Validate() error {
	w := &Watcher{}
	for _, opt := range c.Opts() {
		err := opt(w)
		if err != nil {
			return fmt.Errorf("watch: %w", err)
		}
	}

	return nil
}

// Opts converts the configuration into [Watcher] options.
func (c *Config) Opts() []Opt {
	opts := []Opt{WithFilter(c.Filter)}
	if c.Include != nil {
		opts = append(opts, WithIncludes(c.Include...))
	}

	if c.Exclude != nil {
		opts = append(opts, WithExcludes(c.Exclude...))
	}

	return opts
}
