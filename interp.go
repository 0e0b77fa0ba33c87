package decaf

import (
	"math/big"

	log "github.com/sirupsen/logrus"

	"github.com/insufficiently-caffeinated/decaf/ir"
	"github.com/insufficiently-caffeinated/decaf/smt"
)

var bigZero = big.NewInt(0)

// ExecutionResult tells the driving loop in Interpreter.Execute whether to
// keep dispatching instructions on the current Context or to stop - either
// because the path returned from its outermost frame, or because neither
// branch of a conditional turned out to be feasible.
type ExecutionResult int

const (
	Continue ExecutionResult = iota
	Stop
)

// Interpreter executes instructions against one Context, forking onto
// Queue whenever a conditional branch has more than one feasible successor.
type Interpreter struct {
	Ctx     *Context
	Queue   *Executor
	SmtCtx  smt.Context
	Tracker FailureTracker
}

// NewInterpreter returns an Interpreter for ctx, pushing forked siblings
// onto queue and reporting failing models to tracker.
func NewInterpreter(ctx *Context, queue *Executor, smtCtx smt.Context, tracker FailureTracker) *Interpreter {
	return &Interpreter{Ctx: ctx, Queue: queue, SmtCtx: smtCtx, Tracker: tracker}
}

// Execute runs instructions on i.Ctx until the path stops (by returning
// from its outermost frame or by reaching a conditional branch neither of
// whose successors is feasible). The instruction cursor is advanced before the instruction is
// dispatched, since dispatching a branch, call, or return is free to
// overwrite the frame's current block/cursor itself.
func (i *Interpreter) Execute() {
	for {
		frame := i.Ctx.Top()
		instr, ok := frame.current()
		assertInvariant(ok, "instruction cursor ran off the end of block %s", frame.currentBlock.Name)
		frame.advance()

		if i.dispatch(frame, instr) == Stop {
			return
		}
	}
}

func (i *Interpreter) dispatch(frame *StackFrame, instr ir.Instruction) ExecutionResult {
	log.WithFields(log.Fields{
		"fn":     frame.Function.Name,
		"block":  frame.currentBlock.Name,
		"opcode": instr.Opcode().String(),
	}).Debug("exec")

	switch in := instr.(type) {
	case *ir.BinOp:
		return i.visitBinOp(frame, in)
	case *ir.NotInst:
		return i.visitNot(frame, in)
	case *ir.ICmp:
		return i.visitICmp(frame, in)
	case *ir.Trunc:
		return i.visitTrunc(frame, in)
	case *ir.Select:
		return i.visitSelect(frame, in)
	case *ir.Phi:
		return i.visitPhi(frame, in)
	case *ir.Br:
		return i.visitBr(frame, in)
	case *ir.Ret:
		return i.visitRet(frame, in)
	case *ir.Call:
		return i.visitCall(frame, in)
	default:
		unreachable("Interpreter.dispatch")
		return Stop
	}
}

func (i *Interpreter) operand(frame *StackFrame, v ir.Value) smt.Expr {
	return smt.ToInt(i.SmtCtx, frame.lookup(i.SmtCtx, v))
}

func (i *Interpreter) visitBinOp(frame *StackFrame, op *ir.BinOp) ExecutionResult {
	lhs := i.operand(frame, op.X)
	rhs := i.operand(frame, op.Y)

	switch op.Op {
	case ir.OpAdd:
		frame.insert(op, i.SmtCtx.Add(lhs, rhs))
	case ir.OpSub:
		frame.insert(op, i.SmtCtx.Sub(lhs, rhs))
	case ir.OpMul:
		frame.insert(op, i.SmtCtx.Mul(lhs, rhs))
	case ir.OpUDiv:
		i.guardDivision(lhs, rhs, false)
		frame.insert(op, i.SmtCtx.UDiv(lhs, rhs))
	case ir.OpURem:
		i.guardDivision(lhs, rhs, false)
		frame.insert(op, i.SmtCtx.URem(lhs, rhs))
	case ir.OpSDiv:
		i.guardDivision(lhs, rhs, true)
		frame.insert(op, i.SmtCtx.SDiv(lhs, rhs))
	case ir.OpSRem:
		i.guardDivision(lhs, rhs, true)
		frame.insert(op, i.SmtCtx.SRem(lhs, rhs))
	case ir.OpAnd:
		frame.insert(op, i.SmtCtx.And(lhs, rhs))
	case ir.OpOr:
		frame.insert(op, i.SmtCtx.Or(lhs, rhs))
	case ir.OpXor:
		frame.insert(op, i.SmtCtx.Xor(lhs, rhs))
	case ir.OpShl:
		frame.insert(op, i.SmtCtx.Shl(lhs, rhs))
	case ir.OpLShr:
		frame.insert(op, i.SmtCtx.LShr(lhs, rhs))
	case ir.OpAShr:
		frame.insert(op, i.SmtCtx.AShr(lhs, rhs))
	default:
		unreachable("Interpreter.visitBinOp")
	}

	return Continue
}

// guardDivision checks whether rhs == 0 (and, for signed division, whether
// lhs/rhs is the one case of signed overflow: INT_MIN / -1) is reachable
// from the current path condition, reporting a failure if so, then adds the
// negation permanently so execution continues as if the division were
// well-defined. This matches the original engine's choice to keep exploring
// past an unsafe division rather than treating it as fatal.
func (i *Interpreter) guardDivision(lhs, rhs smt.Expr, signed bool) {
	isZero := i.SmtCtx.Eq(rhs, i.SmtCtx.BVVal(bigZero, widthOf(rhs)))

	unsafe := isZero
	if signed {
		overflows := i.SmtCtx.BoolNot(i.SmtCtx.SDivNoOverflow(lhs, rhs))
		// isZero OR overflows, staying Bool-sorted throughout: Or is a
		// bit-vector op, so the disjunction is built via Ite instead.
		unsafe = i.SmtCtx.Ite(isZero, i.SmtCtx.BoolVal(true), overflows)
	}

	if result, err := i.Ctx.Check(unsafe); err != nil {
		log.WithError(err).Error("solver check failed while guarding division")
	} else if smt.Feasible(result) {
		i.reportFailure()
	}

	i.Ctx.Add(i.SmtCtx.BoolNot(unsafe))
	if signed {
		i.Ctx.Add(i.SmtCtx.SDivNoOverflow(lhs, rhs))
	}
}

func widthOf(e smt.Expr) uint {
	w, ok := e.Sort().IsBV()
	assertInvariant(ok, "widthOf: expected a bit-vector expression")
	return w
}

func (i *Interpreter) reportFailure() {
	model, err := i.Ctx.Model()
	if err != nil {
		log.WithError(err).Error("failed to extract model for a feasible failure")
		return
	}
	i.Tracker.AddFailure(i.Ctx, model)
}

func (i *Interpreter) visitNot(frame *StackFrame, in *ir.NotInst) ExecutionResult {
	x := i.operand(frame, in.X)
	frame.insert(in, i.SmtCtx.Not(x))
	return Continue
}

func (i *Interpreter) visitICmp(frame *StackFrame, in *ir.ICmp) ExecutionResult {
	lhs := i.operand(frame, in.X)
	rhs := i.operand(frame, in.Y)

	var result smt.Expr
	switch in.Pred {
	case ir.ICmpEq:
		result = i.SmtCtx.Eq(lhs, rhs)
	case ir.ICmpNe:
		result = i.SmtCtx.Ne(lhs, rhs)
	case ir.ICmpUgt:
		result = i.SmtCtx.Ugt(lhs, rhs)
	case ir.ICmpUge:
		result = i.SmtCtx.Uge(lhs, rhs)
	case ir.ICmpUlt:
		result = i.SmtCtx.Ult(lhs, rhs)
	case ir.ICmpUle:
		result = i.SmtCtx.Ule(lhs, rhs)
	case ir.ICmpSgt:
		result = i.SmtCtx.Sgt(lhs, rhs)
	case ir.ICmpSge:
		result = i.SmtCtx.Sge(lhs, rhs)
	case ir.ICmpSlt:
		result = i.SmtCtx.Slt(lhs, rhs)
	case ir.ICmpSle:
		result = i.SmtCtx.Sle(lhs, rhs)
	default:
		unreachable("Interpreter.visitICmp")
	}

	frame.insert(in, smt.ToInt(i.SmtCtx, result))
	return Continue
}

func (i *Interpreter) visitTrunc(frame *StackFrame, in *ir.Trunc) ExecutionResult {
	src := i.operand(frame, in.X)
	assertInvariant(in.DestWidth <= widthOf(src), "trunc: destination width %d exceeds source width %d", in.DestWidth, widthOf(src))
	frame.insert(in, i.SmtCtx.Extract(src, in.DestWidth-1, 0))
	return Continue
}

func (i *Interpreter) visitSelect(frame *StackFrame, in *ir.Select) ExecutionResult {
	cond := smt.ToBool(i.SmtCtx, frame.lookup(i.SmtCtx, in.Cond))
	t := i.operand(frame, in.True)
	f := i.operand(frame, in.False)
	frame.insert(in, i.SmtCtx.Ite(cond, t, f))
	return Continue
}

func (i *Interpreter) visitPhi(frame *StackFrame, in *ir.Phi) ExecutionResult {
	assertInvariant(frame.prevBlock != nil, "phi node evaluated in entry block")

	value, ok := in.IncomingFrom(frame.prevBlock)
	assertInvariant(ok, "phi node has no incoming value for predecessor %s", frame.prevBlock.Name)

	frame.insert(in, frame.lookup(i.SmtCtx, value))
	return Continue
}

// visitBr implements the branch-forking policy: when both successors are
// feasible, the fork takes the true branch and this context keeps going
// down the false branch, since following false is what gets a depth-first
// exploration out of a loop and on to the rest of the program fastest.
func (i *Interpreter) visitBr(frame *StackFrame, in *ir.Br) ExecutionResult {
	if in.Cond == nil {
		frame.jumpTo(in.True)
		return Continue
	}

	cond := smt.ToBool(i.SmtCtx, frame.lookup(i.SmtCtx, in.Cond))
	notCond := i.SmtCtx.BoolNot(cond)

	isTrueFeasible, err := i.Ctx.Check(cond)
	if err != nil {
		log.WithError(err).Error("solver check failed while evaluating a branch")
	}
	isFalseFeasible, err := i.Ctx.Check(notCond)
	if err != nil {
		log.WithError(err).Error("solver check failed while evaluating a branch")
	}

	switch {
	case smt.Feasible(isTrueFeasible) && smt.Feasible(isFalseFeasible):
		fork := i.Ctx.Fork()
		fork.Add(cond)
		i.Ctx.Add(notCond)

		fork.Top().jumpTo(in.True)
		frame.jumpTo(in.False)

		i.Queue.Push(fork)
		return Continue
	case smt.Feasible(isTrueFeasible):
		i.Ctx.Add(cond)
		frame.jumpTo(in.True)
		return Continue
	case smt.Feasible(isFalseFeasible):
		i.Ctx.Add(notCond)
		frame.jumpTo(in.False)
		return Continue
	default:
		return Stop
	}
}

func (i *Interpreter) visitRet(frame *StackFrame, in *ir.Ret) ExecutionResult {
	var result smt.Expr
	if in.Value != nil {
		result = frame.lookup(i.SmtCtx, in.Value)
	}

	if empty := i.Ctx.popFrame(); empty {
		return Stop
	}

	if result != nil {
		caller := i.Ctx.Top()
		callInstr := caller.currentBlock.Instrs[caller.cursor-1]
		caller.insert(callInstr, result)
	}

	return Continue
}

func (i *Interpreter) visitCall(frame *StackFrame, in *ir.Call) ExecutionResult {
	fn, ok := in.Callee.(*ir.Function)
	assertInvariant(ok, "indirect calls are not supported")

	if fn.IsIntrinsic() {
		abort("intrinsic function %q not supported", fn.Name)
	}

	if fn.Declared() {
		return i.visitExternCall(frame, in, fn)
	}

	callee := i.Ctx.pushFrame(fn)
	for idx, param := range fn.Params {
		callee.insert(param, i.operand(frame, in.Args[idx]))
	}
	return Continue
}

func (i *Interpreter) visitExternCall(frame *StackFrame, in *ir.Call, fn *ir.Function) ExecutionResult {
	switch fn.Name {
	case "decaf_assume":
		return i.visitAssume(frame, in)
	case "decaf_assert":
		return i.visitAssert(frame, in)
	default:
		abort("external function %q not implemented", fn.Name)
		return Stop
	}
}

// visitAssume unconditionally strengthens the path condition. It does not
// check whether doing so makes the path dead - assumptions are rare, solver
// calls are expensive, and an infeasible path is caught at the very next
// conditional branch anyway.
func (i *Interpreter) visitAssume(frame *StackFrame, in *ir.Call) ExecutionResult {
	assertInvariant(len(in.Args) == 1, "decaf_assume takes exactly one argument")
	cond := smt.ToBool(i.SmtCtx, frame.lookup(i.SmtCtx, in.Args[0]))
	i.Ctx.Add(cond)
	return Continue
}

func (i *Interpreter) visitAssert(frame *StackFrame, in *ir.Call) ExecutionResult {
	assertInvariant(len(in.Args) == 1, "decaf_assert takes exactly one argument")
	cond := smt.ToBool(i.SmtCtx, frame.lookup(i.SmtCtx, in.Args[0]))

	if result, err := i.Ctx.Check(i.SmtCtx.BoolNot(cond)); err != nil {
		log.WithError(err).Error("solver check failed while evaluating an assertion")
	} else if smt.Feasible(result) {
		i.reportFailure()
	}

	i.Ctx.Add(cond)
	return Continue
}
