// Package tox enumerates the environments defined by a tox configuration.
package tox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/macropower/toxwatch/pkg/log"
)

const (
	// IniFile is the primary tox configuration file.
	IniFile = "tox.ini"
	// SetupCfgFile holds the tox configuration in a [tox:tox] section.
	SetupCfgFile = "setup.cfg"

	envSectionPrefix = "testenv:"
)

// ErrConfig is returned when the tox configuration is missing or malformed.
var ErrConfig = errors.New("tox config")

type source struct {
	path    string
	section string
}

// Discover returns the sorted, de-duplicated environment names defined by
// the tox configuration at path. path is either a project directory, in
// which case tox.ini and then setup.cfg are tried, or a configuration file.
//
// An environment is defined by the envlist of the main section (after brace
// expansion) or by a [testenv:NAME] section.
func Discover(ctx context.Context, path string) ([]string, error) {
	src, err := locate(path)
	if err != nil {
		return nil, err
	}

	f, err := ini.LoadSources(ini.LoadOptions{
		AllowPythonMultilineValues: true,
		SpaceBeforeInlineComment:   true,
	}, src.path)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrConfig, src.path, err)
	}

	if src.section == "tox:tox" && !f.HasSection(src.section) {
		return nil, fmt.Errorf("%w: %s has no [%s] section", ErrConfig, src.path, src.section)
	}

	envs := []string{}

	if f.HasSection(src.section) {
		sec := f.Section(src.section)
		for _, key := range []string{"envlist", "env_list"} {
			if sec.HasKey(key) {
				envs = append(envs, ParseEnvList(sec.Key(key).String())...)
			}
		}
	}

	for _, name := range f.SectionStrings() {
		env, ok := strings.CutPrefix(name, envSectionPrefix)
		if !ok {
			continue
		}

		env = strings.TrimSpace(env)
		if env == "" {
			continue
		}

		envs = append(envs, Expand(env)...)
	}

	slices.Sort(envs)
	envs = slices.Compact(envs)

	log.WithContext(ctx).DebugContext(ctx, "discovered tox environments",
		slog.String("path", src.path),
		slog.Int("count", len(envs)),
	)

	return envs, nil
}

func locate(path string) (source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return source{}, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	if !info.IsDir() {
		return sourceFor(path), nil
	}

	for _, name := range []string{IniFile, SetupCfgFile} {
		candidate := filepath.Join(path, name)
		if _, err := os.Stat(candidate); err == nil {
			return sourceFor(candidate), nil
		}
	}

	return source{}, fmt.Errorf("%w: no %s or %s in %s", ErrConfig, IniFile, SetupCfgFile, path)
}

func sourceFor(path string) source {
	if filepath.Base(path) == SetupCfgFile {
		return source{path: path, section: "tox:tox"}
	}

	return source{path: path, section: "tox"}
}
