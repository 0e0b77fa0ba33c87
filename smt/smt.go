// Package smt defines the thin capability set the decaf engine assumes
// from an SMT solver: bit-vector/boolean sorts and constants, arithmetic,
// bitwise, comparison and extraction expression builders, and an
// incremental solver with add/check/check-with-assumption and model
// production.
//
// The engine is solver-agnostic; github.com/insufficiently-caffeinated/decaf/smt/z3
// and .../smt/yices2 are two independent implementations of Context and
// Solver below.
package smt

import "math/big"

// Sort is either the boolean sort or a bit-vector sort of a given width.
// Exactly one of the two is meaningful at a time.
type Sort struct {
	Bool  bool
	Width uint
}

// BoolSort is the singleton boolean sort.
var BoolSort = Sort{Bool: true}

// BVSort returns the bit-vector sort of the given width.
func BVSort(width uint) Sort { return Sort{Width: width} }

// IsBV reports whether s is a bit-vector sort, and if so its width.
func (s Sort) IsBV() (uint, bool) {
	if s.Bool {
		return 0, false
	}
	return s.Width, true
}

// Expr is a solver-backed term of sort Bool or bit-vector. Expr values are
// produced only by a Context or by normalization; callers never construct
// them directly.
type Expr interface {
	Sort() Sort
}

// CheckResult is the three-valued outcome of an SMT query. Per spec, an
// implementation may time out; a timeout must be surfaced as Unknown, never
// silently treated as Unsat, since the interpreter treats Unknown as
// feasible (see Feasible below).
type CheckResult int

const (
	Unsat CheckResult = iota
	Sat
	Unknown
)

func (r CheckResult) String() string {
	switch r {
	case Sat:
		return "sat"
	case Unsat:
		return "unsat"
	default:
		return "unknown"
	}
}

// Feasible reports whether r should be treated as a feasible path. Per
// spec.md §4.6/§9, Unknown is treated as Sat: this is an intentional
// over-approximation that may explore infeasible paths but never misses a
// feasible counterexample.
func Feasible(r CheckResult) bool { return r != Unsat }

// Model is a satisfying assignment returned by a Solver after a Sat check.
type Model interface {
	// String renders the model in a human-readable "symbol = value" form,
	// suitable for direct printing by a FailureTracker.
	String() string

	// EvalBV returns the concrete value the model assigns to a bit-vector
	// expression, or false if expr is not a bit-vector or has no
	// determined value under the model.
	EvalBV(expr Expr) (*big.Int, bool)
}

// Context builds sorts and expressions. One Context is shared by every path
// of a single run (it plays the role the teacher and original_source call
// "z3::context"); each path owns its own Solver.
type Context interface {
	// BVConst returns a fresh symbolic bit-vector constant of the given
	// width, named for debugging/model-printing purposes.
	BVConst(name string, width uint) Expr

	// BVVal returns the literal bit-vector constant of the given width
	// holding value (reduced mod 2^width by the caller - see
	// ir.Const/EvalConstant).
	BVVal(value *big.Int, width uint) Expr

	// BoolVal returns the literal boolean constant.
	BoolVal(v bool) Expr

	Add(x, y Expr) Expr
	Sub(x, y Expr) Expr
	Mul(x, y Expr) Expr
	UDiv(x, y Expr) Expr
	URem(x, y Expr) Expr
	SDiv(x, y Expr) Expr
	SRem(x, y Expr) Expr
	And(x, y Expr) Expr
	Or(x, y Expr) Expr
	Xor(x, y Expr) Expr
	Shl(x, y Expr) Expr
	LShr(x, y Expr) Expr
	AShr(x, y Expr) Expr
	Not(x Expr) Expr

	Eq(x, y Expr) Expr
	Ne(x, y Expr) Expr
	Ult(x, y Expr) Expr
	Ule(x, y Expr) Expr
	Ugt(x, y Expr) Expr
	Uge(x, y Expr) Expr
	Slt(x, y Expr) Expr
	Sle(x, y Expr) Expr
	Sgt(x, y Expr) Expr
	Sge(x, y Expr) Expr

	// BoolNot negates a Bool-sorted expression.
	BoolNot(x Expr) Expr
	// Ite is (if cond then t else f); t and f must share a sort.
	Ite(cond, t, f Expr) Expr
	// Extract returns bits [hi:lo] of x (inclusive, 0-indexed from the LSB).
	Extract(x Expr, hi, lo uint) Expr

	// SDivNoOverflow reports (as a Bool expression) whether the signed
	// division x/y does not overflow - i.e. is false only when x is the
	// minimum representable value and y is all-ones (-1).
	SDivNoOverflow(x, y Expr) Expr

	// NewSolver returns a fresh, empty incremental solver bound to this
	// context.
	NewSolver() Solver
}

// Solver is one path's incremental SMT solver: the accumulated assertions
// are exactly the path condition that brought the owning context here.
type Solver interface {
	// Add appends assertion to the solver's assertion set. assertion must
	// be Bool-sorted.
	Add(assertion Expr)

	// Check queries satisfiability of the current assertion set.
	Check() (CheckResult, error)

	// CheckAssuming queries satisfiability of the current assertion set
	// together with one additional assumption, without adding it
	// permanently.
	CheckAssuming(assumption Expr) (CheckResult, error)

	// Model returns a model for the most recent Sat check. Behavior is
	// undefined if the most recent check did not return Sat.
	Model() (Model, error)

	// Assertions returns the current assertion set in SMT-LIB2 form, one
	// string per assertion, for diagnostic dumps (spec.md §4.7/§6).
	Assertions() []string

	// Fork returns an independent solver over the same context, whose
	// initial assertion set is an exact copy of this solver's. Neither
	// solver observes assertions added to the other afterward.
	Fork() Solver

	// Close releases any resources held by the solver.
	Close()
}
