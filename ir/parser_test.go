package ir_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/insufficiently-caffeinated/decaf/ir"
)

func TestParse_DeclareAndDefine(t *testing.T) {
	module, err := ir.Parse(strings.NewReader(`
declare void @decaf_assert(i1)

define void @test(i32 %x) {
entry:
  %c = icmp eq i32 %x, 0
  call void @decaf_assert(i1 %c)
  ret void
}
`))
	require.NoError(t, err)

	assertFn := module.Lookup("decaf_assert")
	require.NotNil(t, assertFn)
	require.True(t, assertFn.Declared())
	require.Len(t, assertFn.Params, 1)
	require.Equal(t, uint(1), assertFn.Params[0].Width)

	test := module.Lookup("test")
	require.NotNil(t, test)
	require.False(t, test.Declared())
	require.Len(t, test.Blocks, 1)

	entry := test.Blocks[0]
	require.Equal(t, "entry", entry.Name)
	require.Len(t, entry.Instrs, 3)

	icmp, ok := entry.Instrs[0].(*ir.ICmp)
	require.True(t, ok)
	require.Equal(t, ir.ICmpEq, icmp.Pred)
	require.Same(t, test.Params[0], icmp.X)

	rhs, ok := icmp.Y.(*ir.Const)
	require.True(t, ok)
	require.Equal(t, uint(32), rhs.Width)
	require.Equal(t, int64(0), rhs.Value.Int64())

	call, ok := entry.Instrs[1].(*ir.Call)
	require.True(t, ok)
	require.Same(t, assertFn, call.Callee)
	require.True(t, call.Void)
	require.Same(t, icmp, call.Args[0])

	_, ok = entry.Instrs[2].(*ir.Ret)
	require.True(t, ok)
}

// TestParse_LoopWithPhi exercises a conditional back-edge, which requires
// the two-pass build (block/instruction placeholders first, operands
// second) so the phi's loop-carried edge resolves correctly.
func TestParse_LoopWithPhi(t *testing.T) {
	module, err := ir.Parse(strings.NewReader(`
define i32 @countdown(i32 %n) {
entry:
  br label %loop
loop:
  %i = phi i32 [%n, %entry], [%next, %loop]
  %next = sub i32 %i, 1
  %done = icmp eq i32 %next, 0
  br i1 %done, label %exit, label %loop
exit:
  ret i32 %next
}
`))
	require.NoError(t, err)

	fn := module.Lookup("countdown")
	require.NotNil(t, fn)
	require.Len(t, fn.Blocks, 3)

	loop := fn.Blocks[1]
	require.Equal(t, "loop", loop.Name)

	phi, ok := loop.Instrs[0].(*ir.Phi)
	require.True(t, ok)
	require.Len(t, phi.Incoming, 2)

	fromEntry, ok := phi.IncomingFrom(fn.Blocks[0])
	require.True(t, ok)
	require.Same(t, fn.Params[0], fromEntry)

	next := loop.Instrs[1]
	fromLoop, ok := phi.IncomingFrom(loop)
	require.True(t, ok)
	require.Same(t, next, fromLoop)

	br, ok := loop.Instrs[3].(*ir.Br)
	require.True(t, ok)
	require.Same(t, fn.Blocks[2], br.True)
	require.Same(t, loop, br.False)
}

func TestParse_TruncAndSelect(t *testing.T) {
	module, err := ir.Parse(strings.NewReader(`
define i8 @clamp(i32 %x, i1 %useZero) {
entry:
  %t = trunc i32 %x to i8
  %r = select i1 %useZero, i8 0, i8 %t
  ret i8 %r
}
`))
	require.NoError(t, err)

	fn := module.Lookup("clamp")
	require.NotNil(t, fn)

	trunc, ok := fn.Blocks[0].Instrs[0].(*ir.Trunc)
	require.True(t, ok)
	require.Equal(t, uint(8), trunc.DestWidth)

	sel, ok := fn.Blocks[0].Instrs[1].(*ir.Select)
	require.True(t, ok)
	require.Same(t, fn.Params[1], sel.Cond)
	require.Same(t, trunc, sel.False)
}

func TestParse_RejectsMalformedInput(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"missing brace", "define void @test() {\nentry:\n  ret void\n"},
		{"unknown opcode", "define void @test() {\nentry:\n  %x = frobnicate i32 0\n  ret void\n}\n"},
		{"undefined value", "define void @test() {\nentry:\n  %x = add i32 %missing, 1\n  ret void\n}\n"},
		{"bad header", "defein void @test() {}\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ir.Parse(strings.NewReader(tc.src))
			require.Error(t, err)
		})
	}
}

func TestParse_IgnoresComments(t *testing.T) {
	module, err := ir.Parse(strings.NewReader(`
; a standalone comment line
define void @test() { ; trailing comment
entry: ; block comment
  ret void ; another one
}
`))
	require.NoError(t, err)
	require.NotNil(t, module.Lookup("test"))
}
