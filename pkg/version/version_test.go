package version_test

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/macropower/toxwatch/pkg/version"
)

func TestGetVersion(t *testing.T) {
	t.Parallel()

	got := version.GetVersion()

	assert.NotEmpty(t, got)
	if version.Version == "" {
		assert.Equal(t, version.Revision, got)
	}
}

func TestString(t *testing.T) {
	t.Parallel()

	got := version.String()

	assert.True(t, strings.HasPrefix(got, version.GetVersion()+" ("))
	assert.Contains(t, got, runtime.Version())
	assert.Contains(t, got, runtime.GOOS+"/"+runtime.GOARCH)
}
