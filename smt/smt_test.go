package smt_test

import (
	"math/big"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/insufficiently-caffeinated/decaf/ir"
	"github.com/insufficiently-caffeinated/decaf/smt"
)

// fakeExpr is a minimal syntactic expression tree used to exercise the
// normalization helpers without requiring a real solver backend. It is not
// a Solver implementation in its own right - Check/CheckAssuming below are
// stubs, since ToBool/ToInt/EvalConstant and Fork independence are pure
// syntactic/bookkeeping properties that do not require actual solving.
type fakeExpr struct {
	op       string
	sort     smt.Sort
	operands []*fakeExpr
	lit      *big.Int
	name     string
}

func (e *fakeExpr) Sort() smt.Sort { return e.sort }

type fakeCtx struct{}

func (fakeCtx) BVConst(name string, width uint) smt.Expr {
	return &fakeExpr{op: "const", sort: smt.BVSort(width), name: name}
}
func (fakeCtx) BVVal(v *big.Int, width uint) smt.Expr {
	return &fakeExpr{op: "val", sort: smt.BVSort(width), lit: new(big.Int).Set(v)}
}
func (fakeCtx) BoolVal(v bool) smt.Expr {
	n := big.NewInt(0)
	if v {
		n = big.NewInt(1)
	}
	return &fakeExpr{op: "boolval", sort: smt.BoolSort, lit: n}
}
func (c fakeCtx) bin(op string, sort smt.Sort, x, y smt.Expr) smt.Expr {
	return &fakeExpr{op: op, sort: sort, operands: []*fakeExpr{x.(*fakeExpr), y.(*fakeExpr)}}
}
func (c fakeCtx) Add(x, y smt.Expr) smt.Expr  { return c.bin("add", x.Sort(), x, y) }
func (c fakeCtx) Sub(x, y smt.Expr) smt.Expr  { return c.bin("sub", x.Sort(), x, y) }
func (c fakeCtx) Mul(x, y smt.Expr) smt.Expr  { return c.bin("mul", x.Sort(), x, y) }
func (c fakeCtx) UDiv(x, y smt.Expr) smt.Expr { return c.bin("udiv", x.Sort(), x, y) }
func (c fakeCtx) URem(x, y smt.Expr) smt.Expr { return c.bin("urem", x.Sort(), x, y) }
func (c fakeCtx) SDiv(x, y smt.Expr) smt.Expr { return c.bin("sdiv", x.Sort(), x, y) }
func (c fakeCtx) SRem(x, y smt.Expr) smt.Expr { return c.bin("srem", x.Sort(), x, y) }
func (c fakeCtx) And(x, y smt.Expr) smt.Expr  { return c.bin("and", x.Sort(), x, y) }
func (c fakeCtx) Or(x, y smt.Expr) smt.Expr   { return c.bin("or", x.Sort(), x, y) }
func (c fakeCtx) Xor(x, y smt.Expr) smt.Expr  { return c.bin("xor", x.Sort(), x, y) }
func (c fakeCtx) Shl(x, y smt.Expr) smt.Expr  { return c.bin("shl", x.Sort(), x, y) }
func (c fakeCtx) LShr(x, y smt.Expr) smt.Expr { return c.bin("lshr", x.Sort(), x, y) }
func (c fakeCtx) AShr(x, y smt.Expr) smt.Expr { return c.bin("ashr", x.Sort(), x, y) }
func (c fakeCtx) Not(x smt.Expr) smt.Expr {
	return &fakeExpr{op: "not", sort: x.Sort(), operands: []*fakeExpr{x.(*fakeExpr)}}
}
func (c fakeCtx) Eq(x, y smt.Expr) smt.Expr  { return c.bin("eq", smt.BoolSort, x, y) }
func (c fakeCtx) Ne(x, y smt.Expr) smt.Expr  { return c.bin("ne", smt.BoolSort, x, y) }
func (c fakeCtx) Ult(x, y smt.Expr) smt.Expr { return c.bin("ult", smt.BoolSort, x, y) }
func (c fakeCtx) Ule(x, y smt.Expr) smt.Expr { return c.bin("ule", smt.BoolSort, x, y) }
func (c fakeCtx) Ugt(x, y smt.Expr) smt.Expr { return c.bin("ugt", smt.BoolSort, x, y) }
func (c fakeCtx) Uge(x, y smt.Expr) smt.Expr { return c.bin("uge", smt.BoolSort, x, y) }
func (c fakeCtx) Slt(x, y smt.Expr) smt.Expr { return c.bin("slt", smt.BoolSort, x, y) }
func (c fakeCtx) Sle(x, y smt.Expr) smt.Expr { return c.bin("sle", smt.BoolSort, x, y) }
func (c fakeCtx) Sgt(x, y smt.Expr) smt.Expr { return c.bin("sgt", smt.BoolSort, x, y) }
func (c fakeCtx) Sge(x, y smt.Expr) smt.Expr { return c.bin("sge", smt.BoolSort, x, y) }
func (c fakeCtx) BoolNot(x smt.Expr) smt.Expr {
	return &fakeExpr{op: "boolnot", sort: smt.BoolSort, operands: []*fakeExpr{x.(*fakeExpr)}}
}
func (c fakeCtx) Ite(cond, t, f smt.Expr) smt.Expr {
	return &fakeExpr{op: "ite", sort: t.Sort(), operands: []*fakeExpr{cond.(*fakeExpr), t.(*fakeExpr), f.(*fakeExpr)}}
}
func (c fakeCtx) Extract(x smt.Expr, hi, lo uint) smt.Expr {
	return &fakeExpr{op: "extract", sort: smt.BVSort(hi - lo + 1), operands: []*fakeExpr{x.(*fakeExpr)}}
}
func (c fakeCtx) SDivNoOverflow(x, y smt.Expr) smt.Expr { return c.bin("sdiv_no_overflow", smt.BoolSort, x, y) }
func (c fakeCtx) NewSolver() smt.Solver                 { return &fakeSolver{} }

type fakeSolver struct{ assertions []smt.Expr }

func (s *fakeSolver) Add(e smt.Expr)                                     { s.assertions = append(s.assertions, e) }
func (s *fakeSolver) Check() (smt.CheckResult, error)                    { return smt.Sat, nil }
func (s *fakeSolver) CheckAssuming(smt.Expr) (smt.CheckResult, error)    { return smt.Sat, nil }
func (s *fakeSolver) Model() (smt.Model, error)                          { return nil, nil }
func (s *fakeSolver) Assertions() []string                              { return nil }
func (s *fakeSolver) Close()                                            {}
func (s *fakeSolver) Fork() smt.Solver {
	cp := make([]smt.Expr, len(s.assertions))
	copy(cp, s.assertions)
	return &fakeSolver{assertions: cp}
}

func TestToBool_OnOneBitVector(t *testing.T) {
	ctx := fakeCtx{}
	bv1 := ctx.BVConst("c", 1)
	got := smt.ToBool(ctx, bv1).(*fakeExpr)
	if got.op != "eq" {
		t.Fatalf("ToBool(1-bit bv) = op %q, want \"eq\"", got.op)
	}
}

func TestToBool_LeavesWiderBitVectorsAlone(t *testing.T) {
	ctx := fakeCtx{}
	bv32 := ctx.BVConst("c", 32)
	got := smt.ToBool(ctx, bv32)
	if got != bv32 {
		t.Fatalf("ToBool(32-bit bv) should be a no-op")
	}
}

func TestToBool_LeavesBoolAlone(t *testing.T) {
	ctx := fakeCtx{}
	b := ctx.BoolVal(true)
	if got := smt.ToBool(ctx, b); got != b {
		t.Fatalf("ToBool(bool) should be a no-op")
	}
}

func TestToInt_OnBool(t *testing.T) {
	ctx := fakeCtx{}
	b := ctx.BoolVal(true)
	got := smt.ToInt(ctx, b).(*fakeExpr)
	if got.op != "ite" {
		t.Fatalf("ToInt(bool) = op %q, want \"ite\"", got.op)
	}
	if w, ok := got.Sort().IsBV(); !ok || w != 1 {
		t.Fatalf("ToInt(bool) sort = %v, want 1-bit bv", got.Sort())
	}
}

func TestToInt_LeavesBitVectorAlone(t *testing.T) {
	ctx := fakeCtx{}
	bv := ctx.BVConst("c", 8)
	if got := smt.ToInt(ctx, bv); got != bv {
		t.Fatalf("ToInt(bv) should be a no-op")
	}
}

func TestToIntToBoolRoundTrip(t *testing.T) {
	ctx := fakeCtx{}
	bv1 := ctx.BVConst("c", 1)
	asBool := smt.ToBool(ctx, bv1)
	back := smt.ToInt(ctx, asBool)
	if back.Sort() != smt.BVSort(1) {
		t.Fatalf("to_int(to_bool(e)) sort = %v, want 1-bit bv", back.Sort())
	}
}

func TestEvalConstant_SmallWidth(t *testing.T) {
	ctx := fakeCtx{}
	c := ir.NewConst(32, 42)
	got := smt.EvalConstant(ctx, c).(*fakeExpr)
	if got.lit.Uint64() != 42 {
		t.Fatalf("EvalConstant = %v, want 42", got.lit)
	}
	if w, _ := got.Sort().IsBV(); w != 32 {
		t.Fatalf("EvalConstant width = %d, want 32", w)
	}
}

func TestEvalConstant_WidthAbove64(t *testing.T) {
	ctx := fakeCtx{}
	want, ok := new(big.Int).SetString("123456789012345678901234567890", 10)
	if !ok {
		t.Fatal("bad literal in test")
	}
	c := &ir.Const{Width: 128, Value: want}
	got := smt.EvalConstant(ctx, c).(*fakeExpr)
	if got.lit.Cmp(want) != 0 {
		t.Fatalf("EvalConstant(128-bit) = %v, want %v", got.lit, want)
	}
}

func TestSolverFork_AssertionsInitiallyEqualThenIndependent(t *testing.T) {
	ctx := fakeCtx{}
	s1 := ctx.NewSolver()
	s1.Add(ctx.BoolVal(true))

	s2 := s1.Fork()
	if diff := cmp.Diff(len(s1.(*fakeSolver).assertions), len(s2.(*fakeSolver).assertions)); diff != "" {
		t.Fatalf("fork assertion count mismatch (-want +got):\n%s", diff)
	}

	s1.Add(ctx.BoolVal(false))
	if len(s2.(*fakeSolver).assertions) != 1 {
		t.Fatalf("fork: s2 saw s1's later assertion, wanted independence")
	}

	s2.Add(ctx.BoolVal(false))
	s2.Add(ctx.BoolVal(false))
	if len(s1.(*fakeSolver).assertions) != 2 {
		t.Fatalf("fork: s1 saw s2's later assertions, wanted independence")
	}
}
