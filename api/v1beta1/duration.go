package v1beta1

import (
	"fmt"
	"time"

	"github.com/invopop/jsonschema"
)

// durationPattern matches the strings accepted by [time.ParseDuration],
// without a sign.
const durationPattern = `^(0|([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+)$`

// Duration is a [time.Duration] written as a string such as "1s" or "250ms".
//
//nolint:recvcheck // Must satisfy encoding.TextUnmarshaler.
type Duration time.Duration

// Std returns d as a [time.Duration].
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("parse duration: %w", err)
	}

	if v < 0 {
		return fmt.Errorf("parse duration %q: must not be negative", b)
	}

	*d = Duration(v)

	return nil
}

func (Duration) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:     "string",
		Pattern:  durationPattern,
		Examples: []any{"500ms", "1s", "1m30s"},
	}
}
