package decaf

import (
	log "github.com/sirupsen/logrus"

	"github.com/insufficiently-caffeinated/decaf/ir"
	"github.com/insufficiently-caffeinated/decaf/smt"
)

// Run explores every feasible path through fn, starting from fresh
// symbolic constants for its parameters, reporting each feasible safety
// violation to tracker. It returns once the worklist is drained - every
// path has either returned from fn or been stopped because neither branch
// of some conditional remained feasible.
func Run(smtCtx smt.Context, fn *ir.Function, tracker FailureTracker) {
	assertInvariant(!fn.Declared(), "cannot run a declaration-only function %q", fn.Name)

	queue := NewExecutor()
	queue.Push(NewContext(smtCtx, fn))

	for queue.HasNext() {
		ctx := queue.Pop()
		log.WithField("fn", fn.Name).Debug("resuming a path")

		interp := NewInterpreter(ctx, queue, smtCtx, tracker)
		interp.Execute()

		ctx.Close()
	}
}
