package tox

import (
	"strconv"
	"strings"
)

// ParseEnvList splits an envlist value on commas and newlines outside of
// braces and expands every entry. Blank entries and comment lines are
// skipped.
func ParseEnvList(value string) []string {
	var envs []string

	for _, entry := range splitTopLevel(value) {
		entry = strings.TrimSpace(entry)
		if entry == "" || strings.HasPrefix(entry, "#") {
			continue
		}

		envs = append(envs, Expand(entry)...)
	}

	return envs
}

// Expand performs tox factor expansion. Each {a,b} group multiplies the
// result, left to right, so "py{38,39}-django{4,5}" yields py38-django4,
// py38-django5, py39-django4 and py39-django5. A group of the form {N-M}
// with integers N <= M expands to the range N..M.
func Expand(s string) []string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return []string{s}
	}

	end := strings.IndexByte(s[start:], '}')
	if end < 0 {
		return []string{s}
	}

	end += start

	prefix, body, rest := s[:start], s[start+1:end], s[end+1:]
	tails := Expand(rest)

	var out []string
	for _, alt := range alternatives(body) {
		for _, tail := range tails {
			out = append(out, prefix+alt+tail)
		}
	}

	return out
}

func alternatives(body string) []string {
	var alts []string

	for part := range strings.SplitSeq(body, ",") {
		part = strings.TrimSpace(part)
		if lo, hi, ok := numericRange(part); ok {
			for i := lo; i <= hi; i++ {
				alts = append(alts, strconv.Itoa(i))
			}

			continue
		}

		alts = append(alts, part)
	}

	return alts
}

func numericRange(s string) (int, int, bool) {
	a, b, ok := strings.Cut(s, "-")
	if !ok {
		return 0, 0, false
	}

	lo, err := strconv.Atoi(a)
	if err != nil {
		return 0, 0, false
	}

	hi, err := strconv.Atoi(b)
	if err != nil || hi < lo {
		return 0, 0, false
	}

	return lo, hi, true
}

func splitTopLevel(value string) []string {
	var (
		parts []string
		depth int
		last  int
	)

	for i, r := range value {
		switch r {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		case ',', '\n':
			if depth == 0 {
				parts = append(parts, value[last:i])
				last = i + 1
			}
		}
	}

	return append(parts, value[last:])
}
