package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ssakit/internal/errors"
)

func verifyCodes(t *testing.T, m *Module) []string {
	t.Helper()
	err := m.Verify()
	require.Error(t, err)
	var verr *VerifyError
	require.ErrorAs(t, err, &verr)
	require.NotEmpty(t, verr.Diagnostics)
	return verr.Diagnostics.Codes()
}

func TestVerifyIsIdempotent(t *testing.T) {
	ctx := NewContext()
	m, _ := buildSum(ctx)

	before := m.String()
	require.NoError(t, m.Verify())
	require.NoError(t, m.Verify())
	assert.Equal(t, before, m.String())
}

func TestPhiMissingPredecessorFails(t *testing.T) {
	ctx := NewContext()
	m, f, phi := buildDiamond(ctx)
	phi.AddIncoming(f.Param(0), f.Blocks()[1])

	codes := verifyCodes(t, m)
	assert.Contains(t, codes, errors.ErrorPhiPredecessors)
	assert.NotEmpty(t, m.Verify().Error())
}

func TestPhiExtraBlockFails(t *testing.T) {
	ctx := NewContext()
	m, f, phi := buildDiamond(ctx)
	blocks := f.Blocks()
	phi.AddIncomings(
		[]Value{f.Param(0), f.Param(1), f.Param(0)},
		[]*BasicBlock{blocks[1], blocks[2], blocks[0]},
	)

	assert.Equal(t, []string{errors.ErrorPhiPredecessors}, verifyCodes(t, m))
}

func TestPhiIncomingTypeMismatch(t *testing.T) {
	ctx := NewContext()
	m, f, phi := buildDiamond(ctx)
	blocks := f.Blocks()
	phi.AddIncomings([]Value{f.Param(0), ctx.SInt(64, 1)}, blocks[1:3])

	assert.Equal(t, []string{errors.ErrorTypeMismatch}, verifyCodes(t, m))
}

func TestMissingAndMisplacedTerminator(t *testing.T) {
	ctx := NewContext()
	m := ctx.NewModule("m")
	f := m.AddFunction("f", ctx.FunctionType(ctx.VoidType(), nil, false))
	b := ctx.NewBuilder()

	entry := f.AppendBlock("entry")
	next := f.AppendBlock("next")
	f.AppendBlock("empty")

	b.PositionAtEnd(entry)
	b.Br(next)
	b.RetVoid()
	b.PositionAtEnd(next)
	b.Alloca(ctx.Int8Type(), "x")

	codes := verifyCodes(t, m)
	assert.Contains(t, codes, errors.ErrorMisplacedTerminator)
	assert.Contains(t, codes, errors.ErrorMissingTerminator)
	assert.Len(t, codes, 3)
}

func TestEntryWithPredecessorsFails(t *testing.T) {
	ctx := NewContext()
	m := ctx.NewModule("m")
	f := m.AddFunction("spin", ctx.FunctionType(ctx.VoidType(), nil, false))
	b := ctx.NewBuilder()
	entry := f.AppendBlock("entry")
	b.PositionAtEnd(entry)
	b.Br(entry)

	assert.Equal(t, []string{errors.ErrorEntryHasPredecessors}, verifyCodes(t, m))
}

func TestMisplacedPhi(t *testing.T) {
	ctx := NewContext()
	m, f, phi := buildDiamond(ctx)
	blocks := f.Blocks()
	phi.AddIncomings([]Value{f.Param(0), f.Param(1)}, blocks[1:3])

	b := ctx.NewBuilder()
	b.PositionAtEnd(f.AppendBlock("late"))
	b.Add(f.Param(0), f.Param(1), "x")
	b.Phi(ctx.Int32Type(), "late")
	b.Unreachable()

	codes := verifyCodes(t, m)
	assert.Contains(t, codes, errors.ErrorMisplacedPhi)
}

func TestUndominatedUse(t *testing.T) {
	ctx := NewContext()
	i32 := ctx.Int32Type()
	m := ctx.NewModule("m")
	f := m.AddFunction("f", ctx.FunctionType(i32, []Type{ctx.Int1Type()}, false))
	entry := f.AppendBlock("entry")
	then := f.AppendBlock("then")
	end := f.AppendBlock("end")

	b := ctx.NewBuilder()
	b.PositionAtEnd(entry)
	b.CondBr(f.Param(0), then, end)
	b.PositionAtEnd(then)
	x := b.Add(ctx.SInt(32, 1), ctx.SInt(32, 2), "x")
	b.Br(end)
	b.PositionAtEnd(end)
	b.Ret(x)

	assert.Equal(t, []string{errors.ErrorUndominatedUse}, verifyCodes(t, m))
}

func TestUseBeforeDefinitionInBlock(t *testing.T) {
	ctx := NewContext()
	i32 := ctx.Int32Type()
	m := ctx.NewModule("m")
	f := m.AddFunction("f", ctx.FunctionType(i32, nil, false))
	entry := f.AppendBlock("entry")
	loop := f.AppendBlock("loop")

	b := ctx.NewBuilder()
	b.PositionAtEnd(entry)
	b.Br(loop)
	b.PositionAtEnd(loop)
	phi := b.Phi(i32, "i")
	next := b.Add(phi.Value(), ctx.SInt(32, 1), "next")
	phi.AddIncomings([]Value{ctx.SInt(32, 0), next}, []*BasicBlock{entry, loop})
	b.Br(loop)

	require.NoError(t, m.Verify(), "a loop-carried phi use is dominated by its incoming block")

	self := b.Add(ctx.SInt(32, 0), ctx.SInt(32, 0), "")
	self.operands[0] = self
	assert.Contains(t, verifyCodes(t, m), errors.ErrorUndominatedUse)
}

func TestUnreachableBlocksSkipDominance(t *testing.T) {
	ctx := NewContext()
	i32 := ctx.Int32Type()
	m := ctx.NewModule("m")
	f := m.AddFunction("f", ctx.FunctionType(i32, nil, false))
	entry := f.AppendBlock("entry")
	dead := f.AppendBlock("dead")
	other := f.AppendBlock("other")

	b := ctx.NewBuilder()
	b.PositionAtEnd(other)
	x := b.Add(ctx.SInt(32, 1), ctx.SInt(32, 1), "x")
	b.Ret(x)
	b.PositionAtEnd(entry)
	b.Ret(ctx.SInt(32, 0))
	b.PositionAtEnd(dead)
	b.Ret(x)

	assert.NoError(t, m.Verify())
}

func TestForeignReferences(t *testing.T) {
	ctx := NewContext()
	i32 := ctx.Int32Type()
	m := ctx.NewModule("m")
	other := ctx.NewModule("other")
	sig := ctx.FunctionType(i32, []Type{i32}, false)
	f := m.AddFunction("f", sig)
	g := m.AddFunction("g", sig)
	ext := other.AddFunction("ext", sig)

	b := ctx.NewBuilder()
	b.PositionAtEnd(g.AppendBlock("entry"))
	b.Ret(g.Param(0))
	b.PositionAtEnd(f.AppendBlock("entry"))
	b.Call(ext, []Value{f.Param(0)}, "")
	b.Ret(g.Param(0))

	codes := verifyCodes(t, m)
	assert.Equal(t, []string{errors.ErrorForeignReference, errors.ErrorForeignReference}, codes)
}

func TestTypeRules(t *testing.T) {
	ctx := NewContext()
	i32, i64 := ctx.Int32Type(), ctx.Int64Type()

	tests := []struct {
		name string
		code string
		emit func(b *Builder, f *Function)
	}{
		{"binary operand types differ", errors.ErrorTypeMismatch, func(b *Builder, f *Function) {
			b.Add(ctx.SInt(32, 1), ctx.SInt(64, 1), "")
			b.Ret(ctx.SInt(32, 0))
		}},
		{"wrong return type", errors.ErrorTypeMismatch, func(b *Builder, f *Function) {
			b.Ret(ctx.SInt(64, 0))
		}},
		{"branch on i32", errors.ErrorTypeMismatch, func(b *Builder, f *Function) {
			exit := f.AppendBlock("exit")
			b.CondBr(ctx.SInt(32, 1), exit, exit)
			b.PositionAtEnd(exit)
			b.Ret(ctx.SInt(32, 0))
		}},
		{"store through wrong pointer", errors.ErrorTypeMismatch, func(b *Builder, f *Function) {
			p := b.Alloca(i64, "p")
			b.Store(ctx.SInt(32, 1), p)
			b.Ret(ctx.SInt(32, 0))
		}},
		{"zext to narrower type", errors.ErrorTypeMismatch, func(b *Builder, f *Function) {
			b.ZExt(ctx.SInt(64, 1), i32, "")
			b.Ret(ctx.SInt(32, 0))
		}},
		{"void value as operand", errors.ErrorInvalidOperand, func(b *Builder, f *Function) {
			p := b.Alloca(i32, "p")
			st := b.Store(ctx.SInt(32, 1), p)
			b.Ret(st)
		}},
		{"missing operand", errors.ErrorInvalidOperand, func(b *Builder, f *Function) {
			b.Ret(nil)
		}},
		{"nil switch case", errors.ErrorInvalidOperand, func(b *Builder, f *Function) {
			exit := f.AppendBlock("exit")
			b.Switch(ctx.SInt(32, 3), exit, []SwitchCase{{Value: nil, Target: exit}})
			b.PositionAtEnd(exit)
			b.Ret(ctx.SInt(32, 0))
		}},
		{"nil phi incoming", errors.ErrorInvalidOperand, func(b *Builder, f *Function) {
			join := f.AppendBlock("join")
			entry := f.Entry()
			b.Br(join)
			b.PositionAtEnd(join)
			phi := b.Phi(i32, "x")
			var missing *Instr
			phi.AddIncoming(missing, entry)
			b.Ret(ctx.SInt(32, 0))
		}},
		{"phi without incoming values", errors.ErrorPhiPredecessors, func(b *Builder, f *Function) {
			b.Ret(ctx.SInt(32, 0))
			b.PositionAtEnd(f.AppendBlock("dead"))
			b.Ret(b.Phi(i32, "x").Value())
		}},
		{"duplicate switch case", errors.ErrorDuplicateCase, func(b *Builder, f *Function) {
			exit := f.AppendBlock("exit")
			b.Switch(ctx.SInt(32, 3), exit, []SwitchCase{
				{Value: ctx.SInt(32, 1), Target: exit},
				{Value: ctx.SInt(32, 1), Target: exit},
			})
			b.PositionAtEnd(exit)
			b.Ret(ctx.SInt(32, 0))
		}},
		{"call arity", errors.ErrorCallArity, func(b *Builder, f *Function) {
			callee := f.Module().AddFunction("callee", ctx.FunctionType(i32, []Type{i32, i32}, false))
			b.Ret(b.Call(callee, []Value{ctx.SInt(32, 1)}, ""))
		}},
		{"variadic call needs fixed params", errors.ErrorCallArity, func(b *Builder, f *Function) {
			printf := f.Module().AddFunction("printf", ctx.FunctionType(i32, []Type{ctx.Int8PointerType()}, true))
			b.Ret(b.Call(printf, nil, ""))
		}},
		{"argument type", errors.ErrorTypeMismatch, func(b *Builder, f *Function) {
			callee := f.Module().AddFunction("callee", ctx.FunctionType(i32, []Type{i32}, false))
			b.Ret(b.Call(callee, []Value{ctx.SInt(64, 1)}, ""))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := ctx.NewModule(tt.name)
			f := m.AddFunction("f", ctx.FunctionType(i32, nil, false))
			b := ctx.NewBuilder()
			b.PositionAtEnd(f.AppendBlock("entry"))
			tt.emit(b, f)

			assert.Equal(t, []string{tt.code}, verifyCodes(t, m))
		})
	}
}

func TestVariadicCallVerifies(t *testing.T) {
	ctx := NewContext()
	i32 := ctx.Int32Type()
	m := ctx.NewModule("m")
	printf := m.AddFunction("printf", ctx.FunctionType(i32, []Type{ctx.Int8PointerType()}, true))
	f := m.AddFunction("main", ctx.FunctionType(i32, nil, false))
	b := ctx.NewBuilder()
	b.PositionAtEnd(f.AppendBlock("entry"))
	fmtStr := b.GlobalStringPtr("%d %lu\n", "fmt")
	b.Call(printf, []Value{fmtStr, ctx.SInt(32, 1), ctx.UInt(64, 2)}, "")
	b.Ret(ctx.SInt(32, 0))

	assert.NoError(t, m.Verify())
}

func TestOpaqueStructOrdering(t *testing.T) {
	ctx := NewContext()
	m := ctx.NewModule("m")
	opaque := ctx.NamedStruct("Later")
	ptr := ctx.PointerType(opaque)

	pass := m.AddFunction("pass", ctx.FunctionType(ptr, []Type{ptr}, false))
	b := ctx.NewBuilder()
	b.PositionAtEnd(pass.AppendBlock("entry"))
	b.Ret(pass.Param(0))
	require.NoError(t, m.Verify(), "pointers to opaque structs need no layout")

	use := m.AddFunction("use", ctx.FunctionType(ctx.VoidType(), nil, false))
	b.PositionAtEnd(use.AppendBlock("entry"))
	b.Alloca(opaque, "v")
	b.RetVoid()
	assert.Equal(t, []string{errors.ErrorIncompleteStruct}, verifyCodes(t, m))

	opaque.SetBody([]Type{ctx.Int64Type()}, false)
	assert.NoError(t, m.Verify())
}

func TestStructBodyAssignedTwice(t *testing.T) {
	ctx := NewContext()
	m := ctx.NewModule("m")
	s := ctx.NamedStruct("S")
	s.SetBody([]Type{ctx.Int8Type()}, false)
	s.SetBody([]Type{ctx.Int16Type()}, false)

	assert.Equal(t, []string{errors.ErrorStructRedefined}, verifyCodes(t, m))
}

func TestVerifyReportsNameErrors(t *testing.T) {
	ctx := NewContext()
	m := ctx.NewModule("m")
	f := m.AddFunction("f", ctx.FunctionType(ctx.VoidType(), nil, false))
	f.AppendBlock("bad\x00label")
	b := ctx.NewBuilder()
	b.PositionAtEnd(f.Blocks()[0])
	b.RetVoid()

	assert.Equal(t, []string{errors.ErrorInvalidName}, verifyCodes(t, m))
}

func TestDiagnosticLocation(t *testing.T) {
	ctx := NewContext()
	m, f, phi := buildDiamond(ctx)
	phi.AddIncoming(f.Param(0), f.Blocks()[1])

	var verr *VerifyError
	require.ErrorAs(t, m.Verify(), &verr)
	d := verr.Diagnostics[0]
	assert.Equal(t, "max", d.Location.Function)
	assert.Equal(t, "end", d.Location.Block)
	assert.Equal(t, "%r = phi i32 [ %a, %then ]", d.Location.Instr)
}
