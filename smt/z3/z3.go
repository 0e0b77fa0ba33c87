// Package z3 implements github.com/insufficiently-caffeinated/decaf/smt's
// Context and Solver on top of the Z3 theorem prover via cgo.
package z3

import (
	"fmt"
	"math/big"
	"unsafe"

	"github.com/insufficiently-caffeinated/decaf/smt"
)

/*
#cgo LDFLAGS: -lz3
#include <z3.h>
#include <stdlib.h>
*/
import "C"

// Context wraps a Z3_context. One Context is shared by every path of a run.
type Context struct {
	raw C.Z3_context
}

// NewContext returns a new Z3-backed Context, configured for incremental
// solving with model generation (mirroring execute_symbolic's solver setup
// in the original implementation: auto_config and model both enabled).
func NewContext() *Context {
	cfg := C.Z3_mk_config()
	defer C.Z3_del_config(cfg)

	setParam(cfg, "auto_config", "true")
	setParam(cfg, "model", "true")

	raw := C.Z3_mk_context(cfg)
	C.Z3_set_error_handler(raw, nil)
	C.Z3_set_ast_print_mode(raw, C.Z3_PRINT_SMTLIB2_COMPLIANT)
	return &Context{raw: raw}
}

func setParam(cfg C.Z3_config, k, v string) {
	ck := C.CString(k)
	defer C.free(unsafe.Pointer(ck))
	cv := C.CString(v)
	defer C.free(unsafe.Pointer(cv))
	C.Z3_set_param_value(cfg, ck, cv)
}

// Close deletes the underlying Z3 context. The Context must not be used
// afterward.
func (ctx *Context) Close() error {
	C.Z3_del_context(ctx.raw)
	return ctx.err("Z3_del_context")
}

func (ctx *Context) err(op string) error {
	if code := C.Z3_get_error_code(ctx.raw); code != C.Z3_OK {
		return &Error{Code: int(code), Op: op, Message: C.GoString(C.Z3_get_error_msg(ctx.raw, code))}
	}
	return nil
}

// Error represents an error returned from the Z3 API.
type Error struct {
	Code    int
	Op      string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("z3: %s: %s (%d)", e.Op, e.Message, e.Code)
}

// Possible values of Error.Code, mirroring Z3_error_code.
const (
	ErrorCodeOK = iota
	ErrorCodeSortError
	ErrorCodeIOB
	ErrorCodeInvalidArg
	ErrorCodeParserError
	ErrorCodeNoParser
	ErrorCodeInvalidPattern
	ErrorCodeMemoutFail
	ErrorCodeFileAccessError
	ErrorCodeInternalFatal
	ErrorCodeInvalidUsage
	ErrorCodeDecRefError
	ErrorCodeException
)

// expr wraps a Z3_ast together with the smt.Sort it was built at, since a
// raw Z3_ast does not on its own distinguish "1-bit bit-vector" from "bool"
// the way smt.Sort needs to (see smt.ToBool/ToInt).
type expr struct {
	ctx  *Context
	ast  C.Z3_ast
	sort smt.Sort
}

func (e *expr) Sort() smt.Sort { return e.sort }

func (ctx *Context) wrap(ast C.Z3_ast, sort smt.Sort) smt.Expr {
	return &expr{ctx: ctx, ast: ast, sort: sort}
}

func unwrap(e smt.Expr) C.Z3_ast {
	return e.(*expr).ast
}

// BVConst returns a fresh named symbolic bit-vector constant.
func (ctx *Context) BVConst(name string, width uint) smt.Expr {
	sym := C.CString(name)
	defer C.free(unsafe.Pointer(sym))
	sort := C.Z3_mk_bv_sort(ctx.raw, C.uint(width))
	ast := C.Z3_mk_const(ctx.raw, C.Z3_mk_string_symbol(ctx.raw, sym), sort)
	return ctx.wrap(ast, smt.BVSort(width))
}

// BVVal returns the bit-vector literal for value at the given width. Values
// wider than 64 bits are passed to Z3 as a decimal numeral string, since the
// C API's numeral constructors are limited to machine integers.
func (ctx *Context) BVVal(value *big.Int, width uint) smt.Expr {
	sort := C.Z3_mk_bv_sort(ctx.raw, C.uint(width))
	var ast C.Z3_ast
	if width <= 64 && value.IsUint64() {
		ast = C.Z3_mk_unsigned_int64(ctx.raw, C.uint64_t(value.Uint64()), sort)
	} else {
		s := C.CString(value.String())
		defer C.free(unsafe.Pointer(s))
		ast = C.Z3_mk_numeral(ctx.raw, s, sort)
	}
	return ctx.wrap(ast, smt.BVSort(width))
}

// BoolVal returns the boolean literal true/false.
func (ctx *Context) BoolVal(v bool) smt.Expr {
	var ast C.Z3_ast
	if v {
		ast = C.Z3_mk_true(ctx.raw)
	} else {
		ast = C.Z3_mk_false(ctx.raw)
	}
	return ctx.wrap(ast, smt.BoolSort)
}

type binBuilder func(C.Z3_context, C.Z3_ast, C.Z3_ast) C.Z3_ast

func (ctx *Context) bin(fn binBuilder, sort smt.Sort, x, y smt.Expr) smt.Expr {
	ast := fn(ctx.raw, unwrap(x), unwrap(y))
	return ctx.wrap(ast, sort)
}

func (ctx *Context) Add(x, y smt.Expr) smt.Expr {
	return ctx.bin(func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvadd(c, a, b) }, x.Sort(), x, y)
}
func (ctx *Context) Sub(x, y smt.Expr) smt.Expr {
	return ctx.bin(func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvsub(c, a, b) }, x.Sort(), x, y)
}
func (ctx *Context) Mul(x, y smt.Expr) smt.Expr {
	return ctx.bin(func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvmul(c, a, b) }, x.Sort(), x, y)
}
func (ctx *Context) UDiv(x, y smt.Expr) smt.Expr {
	return ctx.bin(func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvudiv(c, a, b) }, x.Sort(), x, y)
}
func (ctx *Context) URem(x, y smt.Expr) smt.Expr {
	return ctx.bin(func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvurem(c, a, b) }, x.Sort(), x, y)
}
func (ctx *Context) SDiv(x, y smt.Expr) smt.Expr {
	return ctx.bin(func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvsdiv(c, a, b) }, x.Sort(), x, y)
}
func (ctx *Context) SRem(x, y smt.Expr) smt.Expr {
	return ctx.bin(func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvsrem(c, a, b) }, x.Sort(), x, y)
}
func (ctx *Context) And(x, y smt.Expr) smt.Expr {
	return ctx.bin(func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvand(c, a, b) }, x.Sort(), x, y)
}
func (ctx *Context) Or(x, y smt.Expr) smt.Expr {
	return ctx.bin(func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvor(c, a, b) }, x.Sort(), x, y)
}
func (ctx *Context) Xor(x, y smt.Expr) smt.Expr {
	return ctx.bin(func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvxor(c, a, b) }, x.Sort(), x, y)
}
func (ctx *Context) Shl(x, y smt.Expr) smt.Expr {
	return ctx.bin(func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvshl(c, a, b) }, x.Sort(), x, y)
}
func (ctx *Context) LShr(x, y smt.Expr) smt.Expr {
	return ctx.bin(func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvlshr(c, a, b) }, x.Sort(), x, y)
}
func (ctx *Context) AShr(x, y smt.Expr) smt.Expr {
	return ctx.bin(func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvashr(c, a, b) }, x.Sort(), x, y)
}

func (ctx *Context) Not(x smt.Expr) smt.Expr {
	ast := C.Z3_mk_bvnot(ctx.raw, unwrap(x))
	return ctx.wrap(ast, x.Sort())
}

func (ctx *Context) cmp(fn binBuilder, x, y smt.Expr) smt.Expr {
	ast := fn(ctx.raw, unwrap(x), unwrap(y))
	return ctx.wrap(ast, smt.BoolSort)
}

func (ctx *Context) Eq(x, y smt.Expr) smt.Expr {
	return ctx.cmp(func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_eq(c, a, b) }, x, y)
}
func (ctx *Context) Ne(x, y smt.Expr) smt.Expr {
	return ctx.BoolNot(ctx.Eq(x, y))
}
func (ctx *Context) Ult(x, y smt.Expr) smt.Expr {
	return ctx.cmp(func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvult(c, a, b) }, x, y)
}
func (ctx *Context) Ule(x, y smt.Expr) smt.Expr {
	return ctx.cmp(func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvule(c, a, b) }, x, y)
}
func (ctx *Context) Ugt(x, y smt.Expr) smt.Expr {
	return ctx.cmp(func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvugt(c, a, b) }, x, y)
}
func (ctx *Context) Uge(x, y smt.Expr) smt.Expr {
	return ctx.cmp(func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvuge(c, a, b) }, x, y)
}
func (ctx *Context) Slt(x, y smt.Expr) smt.Expr {
	return ctx.cmp(func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvslt(c, a, b) }, x, y)
}
func (ctx *Context) Sle(x, y smt.Expr) smt.Expr {
	return ctx.cmp(func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvsle(c, a, b) }, x, y)
}
func (ctx *Context) Sgt(x, y smt.Expr) smt.Expr {
	return ctx.cmp(func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvsgt(c, a, b) }, x, y)
}
func (ctx *Context) Sge(x, y smt.Expr) smt.Expr {
	return ctx.cmp(func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvsge(c, a, b) }, x, y)
}

func (ctx *Context) BoolNot(x smt.Expr) smt.Expr {
	ast := C.Z3_mk_not(ctx.raw, unwrap(x))
	return ctx.wrap(ast, smt.BoolSort)
}

func (ctx *Context) Ite(cond, t, f smt.Expr) smt.Expr {
	ast := C.Z3_mk_ite(ctx.raw, unwrap(cond), unwrap(t), unwrap(f))
	return ctx.wrap(ast, t.Sort())
}

func (ctx *Context) Extract(x smt.Expr, hi, lo uint) smt.Expr {
	ast := C.Z3_mk_extract(ctx.raw, C.uint(hi), C.uint(lo), unwrap(x))
	return ctx.wrap(ast, smt.BVSort(hi-lo+1))
}

// SDivNoOverflow reports whether x/y is not the one case of signed-division
// overflow: x == INT_MIN(width) and y == -1.
func (ctx *Context) SDivNoOverflow(x, y smt.Expr) smt.Expr {
	width, _ := x.Sort().IsBV()
	minVal := new(big.Int).Lsh(big.NewInt(1), width-1)
	allOnes := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), width), big.NewInt(1))

	isMin := ctx.Eq(x, ctx.BVVal(minVal, width))
	isNegOne := ctx.Eq(y, ctx.BVVal(allOnes, width))
	overflow := ctx.boolAnd(isMin, isNegOne)
	return ctx.BoolNot(overflow)
}

func (ctx *Context) boolAnd(x, y smt.Expr) smt.Expr {
	args := []C.Z3_ast{unwrap(x), unwrap(y)}
	ast := C.Z3_mk_and(ctx.raw, C.uint(2), &args[0])
	return ctx.wrap(ast, smt.BoolSort)
}

// NewSolver returns a fresh incremental Z3 solver bound to this context.
func (ctx *Context) NewSolver() smt.Solver {
	raw := C.Z3_mk_solver(ctx.raw)
	C.Z3_solver_inc_ref(ctx.raw, raw)
	return &Solver{ctx: ctx, raw: raw}
}

// Solver wraps a Z3_solver: one path's incremental assertion set.
type Solver struct {
	ctx *Context
	raw C.Z3_solver
}

func (s *Solver) Add(assertion smt.Expr) {
	C.Z3_solver_assert(s.ctx.raw, s.raw, unwrap(assertion))
}

func (s *Solver) Check() (smt.CheckResult, error) {
	ret := C.Z3_solver_check(s.ctx.raw, s.raw)
	if err := s.ctx.err("Z3_solver_check"); err != nil {
		return smt.Unknown, err
	}
	return s.resultFromLBool(ret), nil
}

func (s *Solver) CheckAssuming(assumption smt.Expr) (smt.CheckResult, error) {
	a := unwrap(assumption)
	ret := C.Z3_solver_check_assumptions(s.ctx.raw, s.raw, C.uint(1), &a)
	if err := s.ctx.err("Z3_solver_check_assumptions"); err != nil {
		return smt.Unknown, err
	}
	return s.resultFromLBool(ret), nil
}

func (s *Solver) resultFromLBool(ret C.Z3_lbool) smt.CheckResult {
	switch ret {
	case C.Z3_L_TRUE:
		return smt.Sat
	case C.Z3_L_FALSE:
		return smt.Unsat
	default:
		return smt.Unknown
	}
}

func (s *Solver) Model() (smt.Model, error) {
	m := C.Z3_solver_get_model(s.ctx.raw, s.raw)
	if err := s.ctx.err("Z3_solver_get_model"); err != nil {
		return nil, err
	}
	C.Z3_model_inc_ref(s.ctx.raw, m)
	return &Model{ctx: s.ctx, raw: m}, nil
}

func (s *Solver) Assertions() []string {
	vec := C.Z3_solver_get_assertions(s.ctx.raw, s.raw)
	C.Z3_ast_vector_inc_ref(s.ctx.raw, vec)
	defer C.Z3_ast_vector_dec_ref(s.ctx.raw, vec)

	n := int(C.Z3_ast_vector_size(s.ctx.raw, vec))
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		ast := C.Z3_ast_vector_get(s.ctx.raw, vec, C.uint(i))
		out = append(out, C.GoString(C.Z3_ast_to_string(s.ctx.raw, ast)))
	}
	return out
}

// Fork returns an independent solver whose assertion set starts as an exact
// copy of s's, mirroring Context::fork in the original implementation (build
// a fresh z3::solver and re-assert every existing assertion into it).
func (s *Solver) Fork() smt.Solver {
	fresh := s.ctx.NewSolver().(*Solver)
	vec := C.Z3_solver_get_assertions(s.ctx.raw, s.raw)
	C.Z3_ast_vector_inc_ref(s.ctx.raw, vec)
	defer C.Z3_ast_vector_dec_ref(s.ctx.raw, vec)
	n := int(C.Z3_ast_vector_size(s.ctx.raw, vec))
	for i := 0; i < n; i++ {
		ast := C.Z3_ast_vector_get(s.ctx.raw, vec, C.uint(i))
		C.Z3_solver_assert(s.ctx.raw, fresh.raw, ast)
	}
	return fresh
}

func (s *Solver) Close() {
	C.Z3_solver_dec_ref(s.ctx.raw, s.raw)
}

// Model wraps a Z3_model produced by a Sat check.
type Model struct {
	ctx *Context
	raw C.Z3_model
}

func (m *Model) String() string {
	return C.GoString(C.Z3_model_to_string(m.ctx.raw, m.raw))
}

// EvalBV returns the concrete value the model assigns to a bit-vector
// expression. Values are read back through the decimal numeral string form
// of the evaluated AST so that widths above 64 bits round-trip exactly.
func (m *Model) EvalBV(e smt.Expr) (*big.Int, bool) {
	_, ok := e.Sort().IsBV()
	if !ok {
		return nil, false
	}

	var out C.Z3_ast
	ok2 := C.Z3_model_eval(m.ctx.raw, m.raw, unwrap(e), C.bool(true), &out)
	if !bool(ok2) {
		return nil, false
	}

	s := C.GoString(C.Z3_get_numeral_string(m.ctx.raw, out))
	if s == "" {
		return nil, false
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, false
	}
	return v, true
}
