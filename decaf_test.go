package decaf_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/insufficiently-caffeinated/decaf"
	"github.com/insufficiently-caffeinated/decaf/ir"
	"github.com/insufficiently-caffeinated/decaf/smt"
	"github.com/insufficiently-caffeinated/decaf/smt/z3"
)

// collectingTracker records every failing model for a single driver run so
// a test can inspect how many distinct failures were reported.
type collectingTracker struct {
	models []smt.Model
}

func (t *collectingTracker) AddFailure(_ *decaf.Context, model smt.Model) {
	t.models = append(t.models, model)
}

// runScenario parses source, looks up function, and runs the driver against
// it over a fresh z3 context, returning every failure recorded along the
// way.
func runScenario(t *testing.T, source, function string) *collectingTracker {
	t.Helper()

	module, err := ir.Parse(strings.NewReader(source))
	require.NoError(t, err)

	fn := module.Lookup(function)
	require.NotNilf(t, fn, "no function named %q", function)

	smtCtx := z3.NewContext()
	defer smtCtx.Close()

	tracker := &collectingTracker{}
	decaf.Run(smtCtx, fn, tracker)
	return tracker
}

// Scenario 1: void test() { decaf_assert(true); } - zero failures.
func TestScenario_AssertTrue(t *testing.T) {
	tracker := runScenario(t, `
declare void @decaf_assert(i1)

define void @test() {
entry:
  call void @decaf_assert(i1 1)
  ret void
}
`, "test")
	require.Empty(t, tracker.models)
}

// Scenario 2: void test(uint32_t x) { decaf_assert(x == x); } - zero failures.
func TestScenario_AssertReflexiveEquality(t *testing.T) {
	tracker := runScenario(t, `
declare void @decaf_assert(i1)

define void @test(i32 %x) {
entry:
  %c = icmp eq i32 %x, %x
  call void @decaf_assert(i1 %c)
  ret void
}
`, "test")
	require.Empty(t, tracker.models)
}

// Scenario 3: void test(uint32_t x) { decaf_assert(x == 0); } - at least one
// failure, witnessed by some x != 0.
func TestScenario_AssertEqualsZero(t *testing.T) {
	tracker := runScenario(t, `
declare void @decaf_assert(i1)

define void @test(i32 %x) {
entry:
  %c = icmp eq i32 %x, 0
  call void @decaf_assert(i1 %c)
  ret void
}
`, "test")
	require.NotEmpty(t, tracker.models)
}

// Scenario 4: assume x == UINT32_MAX, divide by a near-UINT32_MAX constant,
// and assert the (concretely determined) quotient - zero failures.
func TestScenario_AssumeThenUnsignedDivide(t *testing.T) {
	tracker := runScenario(t, `
declare void @decaf_assume(i1)
declare void @decaf_assert(i1)

define void @test(i32 %x) {
entry:
  %isMax = icmp eq i32 %x, 4294967295
  call void @decaf_assume(i1 %isMax)
  %y = udiv i32 %x, 4294967246
  %e = icmp eq i32 %y, 1
  call void @decaf_assert(i1 %e)
  ret void
}
`, "test")
	require.Empty(t, tracker.models)
}

// Scenario 5: signed and unsigned division agree once both operands are
// known to be non-negative as signed 32-bit values - zero failures.
func TestScenario_SignedAndUnsignedDivideAgree(t *testing.T) {
	tracker := runScenario(t, `
declare void @decaf_assume(i1)
declare void @decaf_assert(i1)

define i32 @sdiv(i32 %x, i32 %y) {
entry:
  %isMin = icmp eq i32 %x, 2147483648
  br i1 %isMin, label %checky, label %divide
checky:
  %yIsNegOne = icmp eq i32 %y, 4294967295
  %yNotNegOne = not i1 %yIsNegOne
  call void @decaf_assume(i1 %yNotNegOne)
  br label %divide
divide:
  %yIsZero = icmp eq i32 %y, 0
  %yNotZero = not i1 %yIsZero
  call void @decaf_assume(i1 %yNotZero)
  %r = sdiv i32 %x, %y
  ret i32 %r
}

define i32 @udiv(i32 %x, i32 %y) {
entry:
  %yIsZero = icmp eq i32 %y, 0
  %yNotZero = not i1 %yIsZero
  call void @decaf_assume(i1 %yNotZero)
  %r = udiv i32 %x, %y
  ret i32 %r
}

define void @test(i32 %x, i32 %y) {
entry:
  %xHigh = icmp ult i32 %x, 2147483648
  call void @decaf_assume(i1 %xHigh)
  %yHigh = icmp ult i32 %y, 2147483648
  call void @decaf_assume(i1 %yHigh)
  %s = call i32 @sdiv(i32 %x, i32 %y)
  %u = call i32 @udiv(i32 %x, i32 %y)
  %eq = icmp eq i32 %s, %u
  call void @decaf_assert(i1 %eq)
  ret void
}
`, "test")
	require.Empty(t, tracker.models)
}

// Scenario 6: an unguarded division - at least one failure from the
// division-by-zero check.
func TestScenario_UnguardedDivideByZero(t *testing.T) {
	tracker := runScenario(t, `
declare void @decaf_assert(i1)

define void @test(i32 %x, i32 %y) {
entry:
  %q = udiv i32 %x, %y
  %c = icmp eq i32 %q, 0
  call void @decaf_assert(i1 %c)
  ret void
}
`, "test")
	require.NotEmpty(t, tracker.models)
}
