package tox_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/toxwatch/pkg/tox"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestExpand(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		in   string
		want []string
	}{
		"plain": {
			in:   "lint",
			want: []string{"lint"},
		},
		"single group": {
			in:   "py{38,39}",
			want: []string{"py38", "py39"},
		},
		"product": {
			in:   "py{27,36}-django{18,19}",
			want: []string{"py27-django18", "py27-django19", "py36-django18", "py36-django19"},
		},
		"range": {
			in:   "py3{10-12}",
			want: []string{"py310", "py311", "py312"},
		},
		"factor with dash is not a range": {
			in:   "{py-lint,docs}",
			want: []string{"py-lint", "docs"},
		},
		"unbalanced": {
			in:   "py{38",
			want: []string{"py{38"},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, tox.Expand(tc.in))
		})
	}
}

func TestParseEnvList(t *testing.T) {
	t.Parallel()

	got := tox.ParseEnvList("py{38, 39}, lint\n  docs,\n# disabled\n")
	assert.Equal(t, []string{"py38", "py39", "lint", "docs"}, got)
}

func TestDiscover(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		files map[string]string
		want  []string
		err   error
	}{
		"tox.ini envlist": {
			files: map[string]string{
				tox.IniFile: "[tox]\nenvlist = py38, py39, lint\n",
			},
			want: []string{"lint", "py38", "py39"},
		},
		"multiline envlist and testenv sections": {
			files: map[string]string{
				tox.IniFile: `[tox]
envlist =
    py{38,39}-django{4,5}
    docs

[testenv]
commands = pytest {posargs}

[testenv:lint]
commands = ruff check .

[testenv:docs]
commands = sphinx-build docs out
`,
			},
			want: []string{"docs", "lint", "py38-django4", "py38-django5", "py39-django4", "py39-django5"},
		},
		"tox 4 env_list": {
			files: map[string]string{
				tox.IniFile: "[tox]\nenv_list = py312\n",
			},
			want: []string{"py312"},
		},
		"setup.cfg": {
			files: map[string]string{
				tox.SetupCfgFile: "[metadata]\nname = demo\n\n[tox:tox]\nenvlist = py311\n\n[testenv:cov]\n",
			},
			want: []string{"cov", "py311"},
		},
		"tox.ini preferred over setup.cfg": {
			files: map[string]string{
				tox.IniFile:      "[tox]\nenvlist = a\n",
				tox.SetupCfgFile: "[tox:tox]\nenvlist = b\n",
			},
			want: []string{"a"},
		},
		"setup.cfg without tox section": {
			files: map[string]string{
				tox.SetupCfgFile: "[metadata]\nname = demo\n",
			},
			err: tox.ErrConfig,
		},
		"no config": {
			files: map[string]string{},
			err:   tox.ErrConfig,
		},
		"malformed": {
			files: map[string]string{
				tox.IniFile: "[tox\nenvlist = py38\n",
			},
			err: tox.ErrConfig,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			for file, content := range tc.files {
				writeFile(t, dir, file, content)
			}

			got, err := tox.Discover(t.Context(), dir)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDiscover_File(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "custom.ini", "[tox]\nenvlist = py38\n[testenv:py38]\n")

	got, err := tox.Discover(t.Context(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"py38"}, got)
}

func TestDiscover_MissingPath(t *testing.T) {
	t.Parallel()

	_, err := tox.Discover(t.Context(), filepath.Join(t.TempDir(), "missing"))
	require.ErrorIs(t, err, tox.ErrConfig)
}
