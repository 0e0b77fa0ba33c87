package decaf

// Executor is the LIFO worklist of Contexts still to be explored. Pushing a
// fork onto the same worklist that produced it (rather than, say, a
// separate queue per depth) is what makes the branch-forking policy in
// visitBr effective: the context that keeps going depth-first is the one
// most likely to exit the current loop.
type Executor struct {
	contexts []*Context
}

// NewExecutor returns an empty worklist.
func NewExecutor() *Executor {
	return &Executor{}
}

// Push adds ctx to the worklist.
func (e *Executor) Push(ctx *Context) {
	e.contexts = append(e.contexts, ctx)
}

// Pop removes and returns the most recently pushed Context. Panics (via
// assertInvariant) if the worklist is empty; callers must check HasNext
// first.
func (e *Executor) Pop() *Context {
	assertInvariant(e.HasNext(), "executor: worklist is empty")

	n := len(e.contexts)
	ctx := e.contexts[n-1]
	e.contexts = e.contexts[:n-1]
	return ctx
}

// HasNext reports whether any Context remains to be explored.
func (e *Executor) HasNext() bool {
	return len(e.contexts) > 0
}

// Size returns the number of contexts currently queued.
func (e *Executor) Size() int {
	return len(e.contexts)
}
