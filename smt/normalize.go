package smt

import (
	"math/big"

	"github.com/insufficiently-caffeinated/decaf/ir"
)

// ToBool bridges the IR convention that a 1-bit integer is a boolean to the
// solver's distinct boolean sort: if e is a 1-bit bit-vector, it yields
// e == bv1(1); otherwise e is returned unchanged.
//
// One early draft of this function guarded on "is a bit-vector of width 1"
// incorrectly as "is any integer of width 1"; the guard must be on the
// bit-vector sort specifically; see SPEC_FULL.md §9.
func ToBool(ctx Context, e Expr) Expr {
	if w, ok := e.Sort().IsBV(); ok && w == 1 {
		return ctx.Eq(e, ctx.BVVal(big.NewInt(1), 1))
	}
	return e
}

// ToInt bridges the solver's boolean sort back to a 1-bit bit-vector: if e
// is boolean, it yields ite(e, bv1(1), bv1(0)); otherwise e is returned
// unchanged.
func ToInt(ctx Context, e Expr) Expr {
	if e.Sort().Bool {
		return ctx.Ite(e, ctx.BVVal(big.NewInt(1), 1), ctx.BVVal(big.NewInt(0), 1))
	}
	return e
}

// EvalConstant materializes an ir.Const as a bit-vector literal. Only
// integer constants are supported; the IR has no other constant kind.
func EvalConstant(ctx Context, c *ir.Const) Expr {
	return ctx.BVVal(c.Value, c.Width)
}
