package expr

import (
	"sync"

	"github.com/google/cel-go/cel"
)

// LazyProgram compiles a CEL expression on first use.
type LazyProgram struct {
	env        *Environment
	program    cel.Program
	err        error
	expression string
	once       sync.Once
}

// NewLazyProgram creates a new [LazyProgram] for expression in env.
func NewLazyProgram(expression string, env *Environment) *LazyProgram {
	return &LazyProgram{expression: expression, env: env}
}

// Get returns the compiled program, compiling it if needed.
//
//nolint:ireturn // Following CEL's function signature.
func (lp *LazyProgram) Get() (cel.Program, error) {
	lp.once.Do(func() {
		lp.program, lp.err = lp.env.Compile(lp.expression)
	})

	return lp.program, lp.err
}

// String returns the source expression.
func (lp *LazyProgram) String() string {
	return lp.expression
}
