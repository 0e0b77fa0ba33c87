package decaf

import (
	"github.com/insufficiently-caffeinated/decaf/ir"
	"github.com/insufficiently-caffeinated/decaf/smt"
)

// Context is one path's complete execution state: the call stack of
// StackFrames it has accumulated plus the incremental solver holding
// exactly the path condition that brought it here.
type Context struct {
	smtCtx smt.Context
	solver smt.Solver
	stack  []*StackFrame
}

// NewContext returns the initial Context for calling fn: a single frame at
// fn's entry block, with each parameter bound to a fresh symbolic constant
// of its declared width.
func NewContext(smtCtx smt.Context, fn *ir.Function) *Context {
	frame := NewStackFrame(fn)
	for _, param := range fn.Params {
		frame.insert(param, smtCtx.BVConst(param.Name, param.Width))
	}

	return &Context{
		smtCtx: smtCtx,
		solver: smtCtx.NewSolver(),
		stack:  []*StackFrame{frame},
	}
}

// Top returns the currently executing stack frame. Panics (via
// assertInvariant) if the stack is empty, which should never happen while a
// Context is live - a return from the outermost frame ends the path instead.
func (c *Context) Top() *StackFrame {
	assertInvariant(len(c.stack) > 0, "context: stack is empty")
	return c.stack[len(c.stack)-1]
}

// pushFrame enters a call to fn.
func (c *Context) pushFrame(fn *ir.Function) *StackFrame {
	frame := NewStackFrame(fn)
	c.stack = append(c.stack, frame)
	return frame
}

// popFrame returns from the current call. Reports whether the stack is now
// empty (the path has returned from its outermost function and is done).
func (c *Context) popFrame() (empty bool) {
	c.stack = c.stack[:len(c.stack)-1]
	return len(c.stack) == 0
}

// Check queries whether expr (normalized to boolean) is satisfiable given
// the path condition accumulated so far, without adding it permanently.
func (c *Context) Check(expr smt.Expr) (smt.CheckResult, error) {
	cond := smt.ToBool(c.smtCtx, expr)
	return c.solver.CheckAssuming(cond)
}

// CheckCurrent queries satisfiability of the accumulated path condition
// alone.
func (c *Context) CheckCurrent() (smt.CheckResult, error) {
	return c.solver.Check()
}

// Add permanently asserts expr (normalized to boolean) into the path
// condition.
func (c *Context) Add(expr smt.Expr) {
	c.solver.Add(smt.ToBool(c.smtCtx, expr))
}

// Model returns a model witnessing the most recent Sat check.
func (c *Context) Model() (smt.Model, error) {
	return c.solver.Model()
}

// Fork returns an independent copy of c: a clone of every stack frame plus
// an independent solver seeded with an exact copy of c's current
// assertions. Subsequent Add calls on one Context are never observed by the
// other, mirroring Context::fork in the original implementation.
func (c *Context) Fork() *Context {
	stack := make([]*StackFrame, len(c.stack))
	for i, frame := range c.stack {
		stack[i] = frame.clone()
	}

	return &Context{
		smtCtx: c.smtCtx,
		solver: c.solver.Fork(),
		stack:  stack,
	}
}

// Close releases the resources held by the Context's solver.
func (c *Context) Close() {
	c.solver.Close()
}

// Assertions renders the current path condition in SMT-LIB2 form, one
// string per assertion, for --dump-path-condition.
func (c *Context) Assertions() []string {
	return c.solver.Assertions()
}
