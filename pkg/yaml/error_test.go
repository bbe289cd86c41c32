package yaml_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	goccyyaml "github.com/goccy/go-yaml"

	"github.com/macropower/toxwatch/pkg/yaml"
)

func mustBuildPath(t *testing.T, parts ...string) *goccyyaml.Path {
	t.Helper()

	pb := yaml.NewPathBuilder().Root()
	for _, p := range parts {
		pb = pb.Child(p)
	}

	return pb.Build()
}

func TestError_AnnotateSource(t *testing.T) {
	t.Parallel()

	src := []byte(`a: b
b: c
foo: "bar"
key: value
baz: 5
c: d
e: f`)

	err := yaml.NewError(
		errors.New("test error"),
		yaml.WithPath(mustBuildPath(t, "key")),
		yaml.WithSource(src),
	)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "[4:1] test error:")
	assert.Contains(t, err.Error(), "key: value")
}

func TestError_BadPath(t *testing.T) {
	t.Parallel()

	err := yaml.NewError(
		errors.New("test error"),
		yaml.WithPath(mustBuildPath(t, "missing")),
		yaml.WithSource([]byte("a: b\n")),
	)

	assert.Equal(t, "error at $.missing: test error", err.Error())
}

func TestErrorWrapper_Wrap(t *testing.T) {
	t.Parallel()

	src := []byte("key: value\n")
	ew := yaml.NewErrorWrapper(yaml.WithSource(src))

	require.NoError(t, ew.Wrap(nil))

	plain := errors.New("plain")
	assert.Equal(t, plain, ew.Wrap(plain))

	wrapped := ew.Wrap(yaml.NewError(errors.New("bad"), yaml.WithPath(mustBuildPath(t, "key"))))

	var yamlErr *yaml.Error
	require.ErrorAs(t, wrapped, &yamlErr)
	assert.Equal(t, src, yamlErr.Source)
	assert.Contains(t, wrapped.Error(), "[1:1] bad:")
}

func TestDecoder_Decode(t *testing.T) {
	t.Parallel()

	var v map[string]any

	err := yaml.NewDecoder(strings.NewReader("a: [1, 2\n")).Decode(&v)
	require.Error(t, err)

	var yamlErr *yaml.Error
	require.ErrorAs(t, err, &yamlErr)
	assert.NotNil(t, yamlErr.Token)

	err = yaml.NewDecoder(strings.NewReader("a: 1\na: 2\n")).Decode(&v)
	require.NoError(t, err)
}

func TestEncoder_Encode(t *testing.T) {
	t.Parallel()

	var b strings.Builder

	enc := yaml.NewEncoder(&b)
	require.NoError(t, enc.Encode(map[string]any{"list": []string{"a", "b"}}))
	require.NoError(t, enc.Close())

	assert.Equal(t, "list:\n  - a\n  - b\n", b.String())
}
