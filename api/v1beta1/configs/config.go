// Package configs provides the project Config configuration type for toxwatch.
package configs

import (
	"errors"
	"fmt"
	"time"

	"github.com/invopop/jsonschema"

	_ "embed"

	"github.com/macropower/toxwatch/api"
	"github.com/macropower/toxwatch/api/v1beta1"
	"github.com/macropower/toxwatch/pkg/execs"
	"github.com/macropower/toxwatch/pkg/watch"
	"github.com/macropower/toxwatch/pkg/yaml"
)

// Kind is the kind of the project configuration.
const Kind = "Configuration"

// SchemaFile is the file name of the generated JSON schema.
const SchemaFile = "configs.v1beta1.json"

const (
	DefaultDebounce     = time.Second
	DefaultPollInterval = 500 * time.Millisecond
	DefaultStopTimeout  = 5 * time.Second
)

var (
	//go:embed config.yaml
	defaultConfigYAML []byte

	// ValidKinds contains the valid kind values for project configurations.
	ValidKinds = []string{Kind}

	// FileNames are the project configuration file names, in lookup order.
	FileNames = []string{".toxwatch.yaml", ".toxwatch.yml"}

	// DefaultValidator validates project configuration against the JSON schema.
	DefaultValidator = yaml.MustNewValidator("/"+SchemaFile, mustSchema())

	// ErrInvalid is returned by [Config.Validate].
	ErrInvalid = errors.New("invalid configuration")

	// Compile-time interface checks.
	_ v1beta1.Object = (*Config)(nil)
)

// Config represents the toxwatch project configuration.
//
//nolint:recvcheck // Must satisfy the jsonschema interface.
type Config struct {
	v1beta1.TypeMeta `json:",inline"`

	// Command is run once per tox environment.
	Command *execs.Command `json:"command,omitempty" jsonschema:"title=Command"`
	// Watch selects the file changes that trigger a run.
	Watch *watch.Config `json:"watch,omitempty" jsonschema:"title=Watch"`
	// Envs restricts runs to these tox environments.
	Envs []string `json:"envs,omitempty" jsonschema:"title=Environments"`
	// Omit lists tox environments that are never run.
	Omit []string `json:"omit,omitempty" jsonschema:"title=Omitted Environments"`
	// Concurrency is the maximum number of environments run at once.
	// Zero selects the number of CPUs, capped at 8.
	Concurrency int `json:"concurrency,omitempty" jsonschema:"title=Concurrency,minimum=0"`
	// Debounce is the minimum time between two accepted file changes.
	Debounce v1beta1.Duration `json:"debounce,omitempty" jsonschema:"title=Debounce"`
	// PollInterval is how often running environments are checked.
	PollInterval v1beta1.Duration `json:"pollInterval,omitempty" jsonschema:"title=Poll Interval"`
	// StopTimeout is how long a superseded environment may take to exit
	// after SIGTERM before it is killed.
	StopTimeout v1beta1.Duration `json:"stopTimeout,omitempty" jsonschema:"title=Stop Timeout"`
}

// New creates a new project [Config] with default values.
func New() *Config {
	c := &Config{TypeMeta: v1beta1.NewTypeMeta(Kind)}
	c.EnsureDefaults()

	return c
}

// NewBlank returns a [Config] with no fields set. Use it as the decoding
// target of a loader, which applies defaults after decoding.
func NewBlank() *Config {
	return &Config{}
}

// EnsureDefaults initializes unset fields to their default values.
func (c *Config) EnsureDefaults() {
	if c.Command == nil {
		c.Command = &execs.Command{
			Command: "tox",
			Args:    []string{"-e", execs.UnitPlaceholder},
		}
	}

	if c.Watch == nil {
		c.Watch = watch.NewConfig()
	} else {
		c.Watch.EnsureDefaults()
	}

	if c.Debounce == 0 {
		c.Debounce = v1beta1.Duration(DefaultDebounce)
	}

	if c.PollInterval == 0 {
		c.PollInterval = v1beta1.Duration(DefaultPollInterval)
	}

	if c.StopTimeout == 0 {
		c.StopTimeout = v1beta1.Duration(DefaultStopTimeout)
	}
}

// Validate checks the requirements that the schema cannot express.
func (c *Config) Validate() error {
	err := c.Check(ValidKinds...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	if c.Concurrency < 0 {
		return fmt.Errorf("%w: concurrency must not be negative", ErrInvalid)
	}

	for name, d := range map[string]v1beta1.Duration{
		"debounce":     c.Debounce,
		"pollInterval": c.PollInterval,
		"stopTimeout":  c.StopTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalid, name)
		}
	}

	if c.Command != nil {
		if c.Command.Command == "" {
			return fmt.Errorf("%w: command: %w", ErrInvalid, execs.ErrEmptyCommand)
		}

		err = c.Command.CompilePatterns()
		if err != nil {
			return fmt.Errorf("%w: command: %w", ErrInvalid, err)
		}
	}

	if c.Watch != nil {
		err = c.Watch.Validate()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}
	}

	return nil
}

func (c Config) JSONSchemaExtend(jss *jsonschema.Schema) {
	v1beta1.ExtendSchemaWithEnums(jss, v1beta1.ValidAPIVersions, ValidKinds)
}

// MarshalYAML serializes the config to YAML.
func (c Config) MarshalYAML() ([]byte, error) {
	type alias Config

	b, err := api.MarshalYAML(alias(c))
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	return b, nil
}

// Schema reflects the JSON schema of [Config]. Descriptions are only added
// by the schemagen tool, which has the source tree available.
func Schema() ([]byte, error) {
	b, err := yaml.NewSchemaGenerator(&Config{}, "").Generate()
	if err != nil {
		return nil, fmt.Errorf("generate schema: %w", err)
	}

	return b, nil
}

func mustSchema() []byte {
	b, err := Schema()
	if err != nil {
		panic(err)
	}

	return b
}

// Default returns the embedded default config.yaml.
func Default() []byte {
	return defaultConfigYAML
}

// WriteDefault writes the embedded default config.yaml to the specified path.
func WriteDefault(path string, force bool) error {
	err := api.WriteDefaultFile(path, defaultConfigYAML, force, "configuration")
	if err != nil {
		return fmt.Errorf("write default config: %w", err)
	}

	return nil
}

// Find returns the nearest project configuration file at or above dir, or
// an empty string.
func Find(dir string) (string, error) {
	path, err := api.FindConfigFile(dir, FileNames)
	if err != nil {
		return "", fmt.Errorf("find config: %w", err)
	}

	return path, nil
}
