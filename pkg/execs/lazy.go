package execs

import (
	"fmt"
	"regexp"
	"sync"
)

// LazyRegexp compiles a regular expression on first use. It is safe for
// concurrent use; the pattern is compiled at most once.
type LazyRegexp struct {
	err     error
	regex   *regexp.Regexp
	pattern string
	once    sync.Once
}

// NewLazyRegexp creates a new [LazyRegexp] for pattern.
func NewLazyRegexp(pattern string) *LazyRegexp {
	return &LazyRegexp{pattern: pattern}
}

// Get returns the compiled expression. An empty pattern yields a nil
// expression and no error.
func (lr *LazyRegexp) Get() (*regexp.Regexp, error) {
	lr.once.Do(func() {
		if lr.pattern == "" {
			return
		}

		lr.regex, lr.err = regexp.Compile(lr.pattern)
		if lr.err != nil {
			lr.err = fmt.Errorf("compile pattern %q: %w", lr.pattern, lr.err)
		}
	})

	return lr.regex, lr.err
}

// MatchString reports whether s matches. Invalid or empty patterns never match.
func (lr *LazyRegexp) MatchString(s string) bool {
	re, err := lr.Get()
	if err != nil || re == nil {
		return false
	}

	return re.MatchString(s)
}

// String returns the source pattern.
func (lr *LazyRegexp) String() string {
	return lr.pattern
}
