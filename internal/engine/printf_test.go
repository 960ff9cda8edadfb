package engine

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ssakit/internal/ir"
)

// runPrintf builds main() { printf(format, args...) } and returns what it
// printed
func runPrintf(t *testing.T, format string, args func(ctx *ir.Context, b *ir.Builder) []ir.Value) string {
	t.Helper()
	ctx := ir.NewContext()
	defer ctx.Dispose()

	m := ctx.NewModule("printf")
	printf := m.AddFunction("printf", ctx.FunctionType(ctx.Int32Type(), []ir.Type{ctx.Int8PointerType()}, true))
	main := m.AddFunction("main", ctx.FunctionType(ctx.Int32Type(), nil, false))
	b := ctx.NewBuilder()
	b.PositionAtEnd(main.AppendBlock("entry"))
	callArgs := append([]ir.Value{b.GlobalStringPtr(format, "fmt")}, args(ctx, b)...)
	b.Ret(b.Call(printf, callArgs, "n"))

	var out bytes.Buffer
	e := mustEngine(t, Interpreter, m, WithStdout(&out))
	r, err := e.RunNamed("main")
	require.NoError(t, err)
	assert.Equal(t, int64(out.Len()), r.SInt())
	return out.String()
}

func TestPrintfIntegers(t *testing.T) {
	out := runPrintf(t, "[%5d|%-4d|%u|%x|%X|%#o|%hhd|%i|%+d]", func(ctx *ir.Context, b *ir.Builder) []ir.Value {
		return []ir.Value{
			ctx.SInt(32, -42),
			ctx.SInt(32, 7),
			ctx.SInt(32, -1),
			ctx.UInt(32, 255),
			ctx.UInt(64, 0xBEEF),
			ctx.UInt(32, 8),
			ctx.SInt(32, 300),
			ctx.SInt(8, -3),
			ctx.SInt(64, 12),
		}
	})
	assert.Equal(t, "[  -42|7   |4294967295|ff|BEEF|010|44|-3|+12]", out)
}

func TestPrintfStringsAndChars(t *testing.T) {
	out := runPrintf(t, "%c%c %s|%.3s|%5s|%%\n", func(ctx *ir.Context, b *ir.Builder) []ir.Value {
		return []ir.Value{
			ctx.UInt(8, 'o'),
			ctx.UInt(32, 'k'),
			b.GlobalStringPtr("hello", "s"),
			b.GlobalStringPtr("truncate", "t"),
			b.GlobalStringPtr("ab", "u"),
		}
	})
	assert.Equal(t, "ok hello|tru|   ab|%\n", out)
}

func TestPrintfFloats(t *testing.T) {
	out := runPrintf(t, "%.2f %f %e %g %*d", func(ctx *ir.Context, b *ir.Builder) []ir.Value {
		return []ir.Value{
			ctx.ConstFloat(ctx.DoubleType(), 3.14159),
			ctx.ConstFloat(ctx.DoubleType(), 1.5),
			ctx.ConstFloat(ctx.DoubleType(), 1500),
			ctx.ConstFloat(ctx.DoubleType(), 0.5),
			ctx.SInt(32, 4),
			ctx.SInt(32, 9),
		}
	})
	assert.Equal(t, "3.14 1.500000 1.500000e+03 0.5    9", out)
}

func TestPrintfMissingArgument(t *testing.T) {
	ctx := ir.NewContext()
	defer ctx.Dispose()

	m := ctx.NewModule("printf")
	printf := m.AddFunction("printf", ctx.FunctionType(ctx.Int32Type(), []ir.Type{ctx.Int8PointerType()}, true))
	main := m.AddFunction("main", ctx.FunctionType(ctx.VoidType(), nil, false))
	b := ctx.NewBuilder()
	b.PositionAtEnd(main.AppendBlock("entry"))
	b.Call(printf, []ir.Value{b.GlobalStringPtr("%d %d\n", "fmt"), ctx.SInt(32, 1)}, "")
	b.RetVoid()

	e := mustEngine(t, JIT, m)
	_, err := e.RunNamed("main")
	var fault *Fault
	require.ErrorAs(t, err, &fault)
	assert.Contains(t, fault.Reason, "missing argument for %d")
}

func TestPuts(t *testing.T) {
	ctx := ir.NewContext()
	defer ctx.Dispose()

	i32 := ctx.Int32Type()
	i8p := ctx.Int8PointerType()
	m := ctx.NewModule("puts")
	puts := m.AddFunction("puts", ctx.FunctionType(i32, []ir.Type{i8p}, false))
	strlen := m.AddFunction("strlen", ctx.FunctionType(ctx.Int64Type(), []ir.Type{i8p}, false))
	main := m.AddFunction("main", ctx.FunctionType(ctx.Int64Type(), nil, false))
	b := ctx.NewBuilder()
	b.PositionAtEnd(main.AppendBlock("entry"))
	s := b.GlobalStringPtr("Hello, world!", "msg")
	b.Call(puts, []ir.Value{s}, "")
	b.Ret(b.Call(strlen, []ir.Value{s}, "len"))

	for _, kind := range kinds {
		var out bytes.Buffer
		e := mustEngine(t, kind, m, WithStdout(&out))
		r, err := e.RunNamed("main")
		require.NoError(t, err)
		assert.Equal(t, uint64(13), r.Int())
		assert.Equal(t, "Hello, world!\n", out.String())
	}
}

func TestCallocMemcpy(t *testing.T) {
	ctx := ir.NewContext()
	defer ctx.Dispose()

	i8p := ctx.Int8PointerType()
	i64 := ctx.Int64Type()
	m := ctx.NewModule("mem")
	calloc := m.AddFunction("calloc", ctx.FunctionType(i8p, []ir.Type{i64, i64}, false))
	memcpy := m.AddFunction("memcpy", ctx.FunctionType(i8p, []ir.Type{i8p, i8p, i64}, false))
	memset := m.AddFunction("memset", ctx.FunctionType(i8p, []ir.Type{i8p, ctx.Int32Type(), i64}, false))
	free := m.AddFunction("free", ctx.FunctionType(ctx.VoidType(), []ir.Type{i8p}, false))
	puts := m.AddFunction("puts", ctx.FunctionType(ctx.Int32Type(), []ir.Type{i8p}, false))
	main := m.AddFunction("main", ctx.FunctionType(ctx.VoidType(), nil, false))

	b := ctx.NewBuilder()
	b.PositionAtEnd(main.AppendBlock("entry"))
	buf := b.Call(calloc, []ir.Value{ctx.UInt(64, 8), ctx.UInt(64, 1)}, "buf")
	b.Call(memset, []ir.Value{buf, ctx.SInt(32, '-'), ctx.UInt(64, 5)}, "")
	b.Call(memcpy, []ir.Value{buf, b.GlobalStringPtr("ab", "src"), ctx.UInt(64, 2)}, "")
	b.Call(puts, []ir.Value{buf}, "")
	b.Call(free, []ir.Value{buf}, "")
	b.RetVoid()

	var out bytes.Buffer
	e := mustEngine(t, JIT, m, WithStdout(&out))
	_, err := e.RunNamed("main")
	require.NoError(t, err)
	assert.Equal(t, "ab---\n", out.String())
}

func TestPrintfCalledDirectly(t *testing.T) {
	ctx := ir.NewContext()
	defer ctx.Dispose()

	m := ctx.NewModule("direct")
	m.AddFunction("printf", ctx.FunctionType(ctx.Int32Type(), []ir.Type{ctx.Int8PointerType()}, true))
	format := m.AddFunction("format", ctx.FunctionType(ctx.Int8PointerType(), nil, false))
	b := ctx.NewBuilder()
	b.PositionAtEnd(format.AppendBlock("entry"))
	b.Ret(b.GlobalStringPtr("n=%d %s\n", "fmt"))

	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			var out bytes.Buffer
			e := mustEngine(t, kind, m, WithStdout(&out))
			p, err := e.RunNamed("format")
			require.NoError(t, err)

			_, err = e.RunNamed("printf", p, SIntValue(32, -7))
			var fault *Fault
			require.ErrorAs(t, err, &fault)
			assert.Contains(t, fault.Reason, "missing argument for %s")

			out.Reset()
			r, err := e.RunNamed("printf", p, SIntValue(32, -7), p)
			require.NoError(t, err)
			assert.Equal(t, "n=-7 n=%d %s\n\n", out.String())
			assert.Equal(t, int64(out.Len()), r.SInt())

			assert.NotPanics(t, func() { _, _ = e.RunNamed("printf", PointerValue(HeapBase), IntValue(32, 7)) })
		})
	}
}
