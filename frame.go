package decaf

import (
	"github.com/insufficiently-caffeinated/decaf/ir"
	"github.com/insufficiently-caffeinated/decaf/smt"
)

// StackFrame is the state of one call into a function: which block/
// instruction is current, which block control came from (for Phi nodes),
// and the bindings from SSA values to their symbolic expressions.
type StackFrame struct {
	Function *ir.Function

	currentBlock *ir.BasicBlock
	prevBlock    *ir.BasicBlock
	cursor       int // index into currentBlock.Instrs of the next instruction to execute

	variables map[ir.Value]smt.Expr
}

// NewStackFrame returns a frame positioned at fn's entry block.
func NewStackFrame(fn *ir.Function) *StackFrame {
	return &StackFrame{
		Function:     fn,
		currentBlock: fn.Entry(),
		prevBlock:    nil,
		cursor:       0,
		variables:    make(map[ir.Value]smt.Expr),
	}
}

// jumpTo moves execution to the start of block, recording the block left
// from so a subsequent Phi instruction can pick its incoming value.
func (f *StackFrame) jumpTo(block *ir.BasicBlock) {
	f.prevBlock = f.currentBlock
	f.currentBlock = block
	f.cursor = 0
}

// current returns the instruction about to execute, or false if the block
// has been exhausted (a malformed module with no terminator).
func (f *StackFrame) current() (ir.Instruction, bool) {
	if f.cursor >= len(f.currentBlock.Instrs) {
		return nil, false
	}
	return f.currentBlock.Instrs[f.cursor], true
}

// advance moves the cursor past the instruction about to execute. Per the
// original engine's interpreter loop, this happens before the instruction is
// dispatched, since dispatching a branch/call/return instruction is free to
// overwrite currentBlock/cursor itself.
func (f *StackFrame) advance() {
	f.cursor++
}

// insert binds value's result to expr, overwriting any previous binding.
func (f *StackFrame) insert(value ir.Value, expr smt.Expr) {
	f.variables[value] = expr
}

// lookup resolves value to its symbolic expression: constants are
// rematerialized through ctx on every lookup, and everything else must
// already be bound (an unbound non-constant value means the module is
// malformed or execution reached the value out of order).
func (f *StackFrame) lookup(ctx smt.Context, value ir.Value) smt.Expr {
	if c, ok := value.(*ir.Const); ok {
		return smt.EvalConstant(ctx, c)
	}
	e, ok := f.variables[value]
	assertInvariant(ok, "stack frame: tried to access unbound value %s", value)
	return e
}

// clone returns a deep-enough copy of f for use in a forked Context: the
// variable bindings map is copied so that neither fork observes the other's
// subsequent writes, matching z3::expr's own value semantics (expressions
// themselves are immutable and can be shared freely between copies).
func (f *StackFrame) clone() *StackFrame {
	vars := make(map[ir.Value]smt.Expr, len(f.variables))
	for k, v := range f.variables {
		vars[k] = v
	}
	return &StackFrame{
		Function:     f.Function,
		currentBlock: f.currentBlock,
		prevBlock:    f.prevBlock,
		cursor:       f.cursor,
		variables:    vars,
	}
}
