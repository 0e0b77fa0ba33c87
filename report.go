package decaf

import (
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/insufficiently-caffeinated/decaf/smt"
)

// FailureTracker receives every (Context, Model) pair witnessing a feasible
// safety-property violation: a division by zero, a signed-division
// overflow, or a failing decaf_assert.
type FailureTracker interface {
	AddFailure(ctx *Context, model smt.Model)
}

// PrintingFailureTracker writes a human-readable report of each failure to
// an io.Writer as it is found. It does not count failures; wrap it or use
// CountingFailureTracker where the total matters.
type PrintingFailureTracker struct {
	Out io.Writer
}

// NewPrintingFailureTracker returns a tracker that writes to out.
func NewPrintingFailureTracker(out io.Writer) *PrintingFailureTracker {
	return &PrintingFailureTracker{Out: out}
}

func (t *PrintingFailureTracker) AddFailure(ctx *Context, model smt.Model) {
	fmt.Fprintf(t.Out, "Found failed model! Inputs:\n%s\n", model.String())
}

// CountingFailureTracker additionally counts and optionally dumps the
// path condition (as SMT-LIB2) of each failing path, for --dump-path-condition.
type CountingFailureTracker struct {
	Out            io.Writer
	DumpAssertions bool
	Count          uint64
}

// NewCountingFailureTracker returns a tracker that writes to out.
func NewCountingFailureTracker(out io.Writer) *CountingFailureTracker {
	return &CountingFailureTracker{Out: out}
}

func (t *CountingFailureTracker) AddFailure(ctx *Context, model smt.Model) {
	t.Count++

	fmt.Fprintf(t.Out, "Found failure #%d:\n%s\n", t.Count, model.String())
	if t.DumpAssertions {
		fmt.Fprintf(t.Out, "%s\n", strings.Join(ctx.Assertions(), "\n"))
	}

	log.WithField("count", t.Count).Info("recorded a failing path")
}
