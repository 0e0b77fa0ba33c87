// Package yices2 implements github.com/insufficiently-caffeinated/decaf/smt's
// Context and Solver on top of the Yices2 solver via
// github.com/ianamason/yices2_go_bindings.
package yices2

import (
	"fmt"
	"math/big"

	"github.com/insufficiently-caffeinated/decaf/smt"
	yices2 "github.com/ianamason/yices2_go_bindings/yices_api"
)

// Context builds Yices2 terms. Unlike the z3 backend's Z3_context, Yices2's
// term/type tables are process-global; Context mostly exists to satisfy the
// smt.Context interface and to track per-symbol naming.
type Context struct{}

// NewContext returns a Yices2-backed Context. Callers must invoke
// yices2.Init() once at process start before using this package, matching
// how the bindings expect the global library to be initialized.
func NewContext() *Context {
	return &Context{}
}

// expr wraps a Yices2 term together with its smt.Sort.
type expr struct {
	term yices2.TermT
	sort smt.Sort
}

func (e *expr) Sort() smt.Sort { return e.sort }

func wrap(term yices2.TermT, sort smt.Sort) smt.Expr {
	return &expr{term: term, sort: sort}
}

func unwrap(e smt.Expr) yices2.TermT {
	return e.(*expr).term
}

var nameCounter int

func (ctx *Context) BVConst(name string, width uint) smt.Expr {
	term := yices2.NewUninterpretedTerm(yices2.BvType(uint32(width)))
	if name != "" {
		nameCounter++
		_ = yices2.SetTermName(term, fmt.Sprintf("%s_%d", name, nameCounter))
	}
	return wrap(term, smt.BVSort(width))
}

// BVVal returns the bit-vector literal for value at the given width. Values
// that do not fit in an int64 are built bit-by-bit from the two's-complement
// byte expansion, since BvconstInt64 only accepts machine integers.
func (ctx *Context) BVVal(value *big.Int, width uint) smt.Expr {
	if value.IsInt64() || (value.Sign() >= 0 && value.BitLen() < 63) {
		return wrap(yices2.BvconstInt64(uint32(width), value.Int64()), smt.BVSort(width))
	}
	return wrap(bvConstFromBigInt(value, width), smt.BVSort(width))
}

func bvConstFromBigInt(value *big.Int, width uint) yices2.TermT {
	bits := make([]int32, width)
	v := new(big.Int).Set(value)
	for i := uint(0); i < width; i++ {
		if v.Bit(int(i)) != 0 {
			bits[i] = 1
		}
	}
	return yices2.BvconstFromArray(bits)
}

func (ctx *Context) BoolVal(v bool) smt.Expr {
	if v {
		return wrap(yices2.True(), smt.BoolSort)
	}
	return wrap(yices2.False(), smt.BoolSort)
}

type binBuilder func(yices2.TermT, yices2.TermT) yices2.TermT

func bin(fn binBuilder, sort smt.Sort, x, y smt.Expr) smt.Expr {
	return wrap(fn(unwrap(x), unwrap(y)), sort)
}

func (ctx *Context) Add(x, y smt.Expr) smt.Expr  { return bin(yices2.Bvadd, x.Sort(), x, y) }
func (ctx *Context) Sub(x, y smt.Expr) smt.Expr  { return bin(yices2.Bvsub, x.Sort(), x, y) }
func (ctx *Context) Mul(x, y smt.Expr) smt.Expr  { return bin(yices2.Bvmul, x.Sort(), x, y) }
func (ctx *Context) UDiv(x, y smt.Expr) smt.Expr { return bin(yices2.Bvdiv, x.Sort(), x, y) }
func (ctx *Context) URem(x, y smt.Expr) smt.Expr { return bin(yices2.Bvrem, x.Sort(), x, y) }
func (ctx *Context) SDiv(x, y smt.Expr) smt.Expr { return bin(yices2.Bvsdiv, x.Sort(), x, y) }
func (ctx *Context) SRem(x, y smt.Expr) smt.Expr { return bin(yices2.Bvsrem, x.Sort(), x, y) }
func (ctx *Context) And(x, y smt.Expr) smt.Expr  { return bin(yices2.Bvand2, x.Sort(), x, y) }
func (ctx *Context) Or(x, y smt.Expr) smt.Expr   { return bin(yices2.Bvor2, x.Sort(), x, y) }
func (ctx *Context) Xor(x, y smt.Expr) smt.Expr  { return bin(yices2.Bvxor2, x.Sort(), x, y) }
func (ctx *Context) Shl(x, y smt.Expr) smt.Expr  { return bin(yices2.Bvshl, x.Sort(), x, y) }
func (ctx *Context) LShr(x, y smt.Expr) smt.Expr { return bin(yices2.Bvlshr, x.Sort(), x, y) }
func (ctx *Context) AShr(x, y smt.Expr) smt.Expr { return bin(yices2.Bvashr, x.Sort(), x, y) }

func (ctx *Context) Not(x smt.Expr) smt.Expr {
	return wrap(yices2.Bvnot(unwrap(x)), x.Sort())
}

func cmp(fn binBuilder, x, y smt.Expr) smt.Expr {
	return wrap(fn(unwrap(x), unwrap(y)), smt.BoolSort)
}

func (ctx *Context) Eq(x, y smt.Expr) smt.Expr  { return cmp(yices2.BveqAtom, x, y) }
func (ctx *Context) Ne(x, y smt.Expr) smt.Expr  { return cmp(yices2.BvneqAtom, x, y) }
func (ctx *Context) Ult(x, y smt.Expr) smt.Expr { return cmp(yices2.BvltAtom, x, y) }
func (ctx *Context) Ule(x, y smt.Expr) smt.Expr { return cmp(yices2.BvleAtom, x, y) }
func (ctx *Context) Ugt(x, y smt.Expr) smt.Expr { return cmp(yices2.BvgtAtom, x, y) }
func (ctx *Context) Uge(x, y smt.Expr) smt.Expr { return cmp(yices2.BvgeAtom, x, y) }
func (ctx *Context) Slt(x, y smt.Expr) smt.Expr { return cmp(yices2.BvsltAtom, x, y) }
func (ctx *Context) Sle(x, y smt.Expr) smt.Expr { return cmp(yices2.BvsleAtom, x, y) }
func (ctx *Context) Sgt(x, y smt.Expr) smt.Expr { return cmp(yices2.BvsgtAtom, x, y) }
func (ctx *Context) Sge(x, y smt.Expr) smt.Expr { return cmp(yices2.BvsgeAtom, x, y) }

func (ctx *Context) BoolNot(x smt.Expr) smt.Expr {
	return wrap(yices2.Not(unwrap(x)), smt.BoolSort)
}

func (ctx *Context) Ite(cond, t, f smt.Expr) smt.Expr {
	return wrap(yices2.Ite(unwrap(cond), unwrap(t), unwrap(f)), t.Sort())
}

func (ctx *Context) Extract(x smt.Expr, hi, lo uint) smt.Expr {
	return wrap(yices2.Bvextract(unwrap(x), uint32(lo), uint32(hi)), smt.BVSort(hi-lo+1))
}

// SDivNoOverflow mirrors the z3 backend: x/y overflows only when x is the
// minimum representable value of its width and y is all-ones (-1).
func (ctx *Context) SDivNoOverflow(x, y smt.Expr) smt.Expr {
	width, _ := x.Sort().IsBV()
	minVal := new(big.Int).Lsh(big.NewInt(1), width-1)
	allOnes := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), width), big.NewInt(1))

	isMin := ctx.Eq(x, ctx.BVVal(minVal, width))
	isNegOne := ctx.Eq(y, ctx.BVVal(allOnes, width))
	overflow := wrap(yices2.And2(unwrap(isMin), unwrap(isNegOne)), smt.BoolSort)
	return ctx.BoolNot(overflow)
}

// NewSolver returns a fresh incremental Yices2 context/solver.
func (ctx *Context) NewSolver() smt.Solver {
	s := &Solver{raw: yices2.ContextT{}}
	yices2.InitContext(yices2.ConfigT{}, &s.raw)
	return s
}

// Solver wraps one path's Yices2 context (in Yices2's terminology, a solver
// instance is itself called a "context" - not to be confused with this
// package's Context, which corresponds to the shared z3::context role).
type Solver struct {
	raw        yices2.ContextT
	assertions []yices2.TermT
	lastModel  *yices2.ModelT
}

// Add asserts assertion permanently into s.raw (immediately, not batched),
// so that it is visible to every Check/CheckAssuming from here on.
func (s *Solver) Add(assertion smt.Expr) {
	term := unwrap(assertion)
	s.assertions = append(s.assertions, term)
	yices2.AssertFormula(s.raw, term)
}

func (s *Solver) Check() (smt.CheckResult, error) {
	return s.check()
}

// CheckAssuming asserts assumption only for the duration of this query,
// using Yices2's push/pop scoping - the same pattern
// Notation-gscanner/internal/smt/model.go's eval helper uses to evaluate a
// term without polluting the context - so the assumption never becomes
// part of the permanent assertion set. Per spec.md §4.4, a later
// Check/CheckAssuming must not observe it.
func (s *Solver) CheckAssuming(assumption smt.Expr) (smt.CheckResult, error) {
	yices2.Push(s.raw)
	defer yices2.Pop(s.raw)

	if errcode := yices2.AssertFormula(s.raw, unwrap(assumption)); errcode < 0 {
		return smt.Unknown, fmt.Errorf("yices2: %s", yices2.ErrorString())
	}
	return s.check()
}

func (s *Solver) check() (smt.CheckResult, error) {
	s.lastModel = nil
	status := yices2.CheckContext(s.raw, yices2.ParamT{})
	switch status {
	case yices2.StatusSat:
		s.lastModel = yices2.GetModel(s.raw, 1)
		return smt.Sat, nil
	case yices2.StatusUnsat:
		return smt.Unsat, nil
	default:
		return smt.Unknown, nil
	}
}

func (s *Solver) Model() (smt.Model, error) {
	if s.lastModel == nil {
		return nil, fmt.Errorf("yices2: no model available (last check was not sat)")
	}
	return &Model{raw: s.lastModel}, nil
}

// Assertions returns one placeholder string per assertion; it does not
// render the assertions in SMT-LIB2 form.
func (s *Solver) Assertions() []string {
	out := make([]string, 0, len(s.assertions))
	for range s.assertions {
		out = append(out, "<yices2 term>")
	}
	return out
}

// Fork returns an independent solver carrying the same permanent assertion
// set, replayed one by one into a fresh Yices2 context. Since s.raw already
// has every element of s.assertions asserted (Add applies them immediately),
// copying the slice alone would not copy that state - it has to be
// re-asserted into the new context.
func (s *Solver) Fork() smt.Solver {
	fresh := &Solver{raw: yices2.ContextT{}}
	yices2.InitContext(yices2.ConfigT{}, &fresh.raw)
	fresh.assertions = append(fresh.assertions, s.assertions...)
	for _, term := range fresh.assertions {
		yices2.AssertFormula(fresh.raw, term)
	}
	return fresh
}

func (s *Solver) Close() {}

// Model wraps a Yices2 model produced by a Sat check.
type Model struct {
	raw *yices2.ModelT
}

// String returns a placeholder naming the model's address; it does not list
// the model's symbol assignments.
func (m *Model) String() string {
	return fmt.Sprintf("<yices2 model %p>", m.raw)
}

func (m *Model) EvalBV(e smt.Expr) (*big.Int, bool) {
	width, ok := e.Sort().IsBV()
	if !ok {
		return nil, false
	}
	term := unwrap(e)

	if width <= 63 {
		var val int64
		if errcode := yices2.GetInt64Value(*m.raw, term, &val); errcode != 0 {
			return nil, false
		}
		return big.NewInt(val), true
	}

	bits := make([]int32, width)
	if errcode := yices2.GetBvValue(*m.raw, term, bits); errcode != 0 {
		return nil, false
	}
	out := new(big.Int)
	for i := uint(0); i < width; i++ {
		if bits[i] != 0 {
			out.SetBit(out, int(i), 1)
		}
	}
	return out, true
}
