// Package decaf implements a symbolic execution engine over the typed,
// SSA-form intermediate representation defined by
// github.com/insufficiently-caffeinated/decaf/ir, using a pluggable SMT
// backend (github.com/insufficiently-caffeinated/decaf/smt) to decide path
// feasibility and to find inputs that trigger a division-by-zero, a signed
// division overflow, or a failing decaf_assert.
package decaf

import (
	"fmt"

	"github.com/pkg/errors"
)

// Standard widths used throughout the engine.
const (
	WidthBool = 1
	Width8    = 8
	Width16   = 16
	Width32   = 32
	Width64   = 64
)

// Sentinel errors a Solver backend may return from Check/CheckAssuming to
// report why it gave up rather than returning a definite sat/unsat.
var (
	ErrSolverTimeout       = errors.New("solver timeout")
	ErrSolverCanceled      = errors.New("solver canceled")
	ErrSolverResourceLimit = errors.New("solver resource limit")
	ErrSolverUnknown       = errors.New("solver unknown error")
)

// FatalError is an unrecoverable engine invariant violation - a malformed
// module, an unsupported external call, or a reached-the-unreachable bug in
// the interpreter itself. It carries a stack trace (via github.com/pkg/errors)
// so the driver can print one on the way down, mirroring the original
// engine's DECAF_ASSERT/DECAF_ABORT behavior of printing a backtrace and
// exiting with status 255 rather than attempting to continue.
type FatalError struct {
	cause error
}

func (e *FatalError) Error() string { return e.cause.Error() }
func (e *FatalError) Unwrap() error { return e.cause }

// Format forwards to the underlying pkg/errors cause so that "%+v" prints
// the stack trace captured at the call to abort/assertInvariant.
func (e *FatalError) Format(s fmt.State, verb rune) {
	if f, ok := e.cause.(fmt.Formatter); ok {
		f.Format(s, verb)
		return
	}
	fmt.Fprint(s, e.cause.Error())
}

// abort panics with a FatalError built from format/args, capturing a stack
// trace at the call site.
func abort(format string, args ...interface{}) {
	panic(&FatalError{cause: errors.Errorf(format, args...)})
}

// unreachable aborts with a message identifying dead code that was reached.
func unreachable(where string) {
	abort("entered unreachable code in %s", where)
}

// assertInvariant aborts with the given message if cond is false. It plays
// the role DECAF_ASSERT played in the original implementation: a checked
// precondition whose failure means the engine (not the program under
// analysis) has a bug.
func assertInvariant(cond bool, format string, args ...interface{}) {
	if !cond {
		abort(format, args...)
	}
}
