package engine

import (
	"bytes"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ssakit/internal/errors"
	"ssakit/internal/fib"
	"ssakit/internal/ir"
	"ssakit/internal/samples"
)

var kinds = []Kind{Interpreter, JIT}

func mustEngine(t *testing.T, kind Kind, m *ir.Module, opts ...Option) *Engine {
	t.Helper()
	require.NoError(t, m.Verify())
	e, err := New(kind, m, opts...)
	require.NoError(t, err)
	t.Cleanup(e.Dispose)
	return e
}

func TestSum(t *testing.T) {
	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			ctx := ir.NewContext()
			defer ctx.Dispose()

			m := samples.Sum(ctx)
			e := mustEngine(t, kind, m)
			r, err := e.Run(m.NamedFunction("sum"), nil)
			require.NoError(t, err)
			assert.Equal(t, IntKind, r.Kind())
			assert.Equal(t, uint32(32), r.IntWidth())
			assert.Equal(t, int64(48), r.SInt())
		})
	}
}

func TestLinkedList(t *testing.T) {
	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			ctx := ir.NewContext()
			defer ctx.Dispose()

			e := mustEngine(t, kind, samples.LinkedList(ctx))
			r, err := e.RunNamed("list_sum")
			require.NoError(t, err)
			assert.Equal(t, int64(10), r.SInt())
		})
	}
}

func TestFib(t *testing.T) {
	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			ctx := ir.NewContext()
			defer ctx.Dispose()

			var out bytes.Buffer
			e := mustEngine(t, kind, fib.Build(ctx), WithStdout(&out))

			r, err := e.RunNamed("main")
			require.NoError(t, err)
			assert.True(t, r.IsVoid())
			assert.Equal(t, "55\n", out.String())

			r, err = e.RunNamed("fib", IntValue(64, 20))
			require.NoError(t, err)
			assert.Equal(t, uint64(6765), r.Int())
		})
	}
}

func TestSamples(t *testing.T) {
	for _, s := range samples.All() {
		for _, kind := range kinds {
			t.Run(s.Name+"/"+kind.String(), func(t *testing.T) {
				ctx := ir.NewContext()
				defer ctx.Dispose()

				var out bytes.Buffer
				e := mustEngine(t, kind, s.Build(ctx), WithStdout(&out))
				r, err := e.RunNamed(s.Entry)
				require.NoError(t, err)
				if !r.IsVoid() {
					assert.Equal(t, s.Result, r.SInt())
				}
				assert.Equal(t, s.Output, out.String())
			})
		}
	}
}

func TestTailCallReusesFrame(t *testing.T) {
	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			ctx := ir.NewContext()
			defer ctx.Dispose()

			e := mustEngine(t, kind, samples.Countdown(ctx, 50000), WithMaxCallDepth(8))
			r, err := e.RunNamed("main")
			require.NoError(t, err)
			assert.Equal(t, int64(1), r.SInt())
		})
	}
}

// buildRecursive builds down(n) = n == 0 ? 0 : down(n-1) + 1, which is not
// a tail call
func buildRecursive(ctx *ir.Context) *ir.Module {
	i32 := ctx.Int32Type()
	m := ctx.NewModule("recursive")
	f := m.AddFunction("down", ctx.FunctionType(i32, []ir.Type{i32}, false))
	entry := f.AppendBlock("entry")
	base := f.AppendBlock("base")
	rec := f.AppendBlock("rec")

	b := ctx.NewBuilder()
	b.PositionAtEnd(entry)
	b.CondBr(b.ICmp(ir.IntEQ, f.Param(0), ctx.SInt(32, 0), "z"), base, rec)
	b.PositionAtEnd(base)
	b.Ret(ctx.SInt(32, 0))
	b.PositionAtEnd(rec)
	r := b.TailCall(f, []ir.Value{b.Sub(f.Param(0), ctx.SInt(32, 1), "n")}, "r")
	b.Ret(b.Add(r, ctx.SInt(32, 1), "s"))
	return m
}

func TestCallDepthLimit(t *testing.T) {
	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			ctx := ir.NewContext()
			defer ctx.Dispose()

			e := mustEngine(t, kind, buildRecursive(ctx), WithMaxCallDepth(50))
			r, err := e.RunNamed("down", SIntValue(32, 40))
			require.NoError(t, err)
			assert.Equal(t, int64(40), r.SInt())

			_, err = e.RunNamed("down", SIntValue(32, 100))
			var fault *Fault
			require.ErrorAs(t, err, &fault)
			assert.Equal(t, "down", fault.Function)
			assert.Contains(t, fault.Reason, "call depth")
		})
	}
}

func TestFaults(t *testing.T) {
	ctx := ir.NewContext()
	defer ctx.Dispose()

	i32 := ctx.Int32Type()
	m := ctx.NewModule("faults")
	b := ctx.NewBuilder()

	div := m.AddFunction("div", ctx.FunctionType(i32, []ir.Type{i32, i32}, false))
	b.PositionAtEnd(div.AppendBlock("entry"))
	b.Ret(b.SDiv(div.Param(0), div.Param(1), "q"))

	null := m.AddFunction("null", ctx.FunctionType(i32, nil, false))
	b.PositionAtEnd(null.AppendBlock("entry"))
	b.Ret(b.Load(ctx.ConstNull(ctx.PointerType(i32)), "v"))

	twice := m.AddFunction("twice", ctx.FunctionType(ctx.VoidType(), nil, false))
	b.PositionAtEnd(twice.AppendBlock("entry"))
	p := b.Malloc(i32, "p")
	b.Free(p)
	b.Free(p)
	b.RetVoid()

	trap := m.AddFunction("trap", ctx.FunctionType(ctx.VoidType(), nil, false))
	b.PositionAtEnd(trap.AppendBlock("body"))
	b.Unreachable()

	tests := []struct {
		name   string
		fn     string
		args   []GenericValue
		block  string
		reason string
	}{
		{"division by zero", "div", []GenericValue{SIntValue(32, 7), SIntValue(32, 0)}, "entry", "division by zero"},
		{"signed overflow", "div", []GenericValue{SIntValue(32, -2147483648), SIntValue(32, -1)}, "entry", "overflow"},
		{"null load", "null", nil, "entry", "null pointer"},
		{"double free", "twice", nil, "entry", "double free"},
		{"unreachable", "trap", nil, "body", "unreachable"},
	}

	for _, kind := range kinds {
		e := mustEngine(t, kind, m)
		for _, tt := range tests {
			t.Run(kind.String()+"/"+tt.name, func(t *testing.T) {
				_, err := e.RunNamed(tt.fn, tt.args...)
				var fault *Fault
				require.ErrorAs(t, err, &fault)
				assert.Equal(t, tt.fn, fault.Function)
				assert.Equal(t, tt.block, fault.Block)
				assert.Contains(t, fault.Reason, tt.reason)
			})
		}
	}

	e := mustEngine(t, Interpreter, m)
	r, err := e.RunNamed("div", SIntValue(32, -7), SIntValue(32, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(-3), r.SInt())
}

func buildUnresolved(ctx *ir.Context) *ir.Module {
	m := ctx.NewModule("unresolved")
	ext := m.AddFunction("launch_rockets", ctx.FunctionType(ctx.VoidType(), nil, false))
	main := m.AddFunction("main", ctx.FunctionType(ctx.VoidType(), nil, false))
	b := ctx.NewBuilder()
	b.PositionAtEnd(main.AppendBlock("entry"))
	b.Call(ext, nil, "")
	b.RetVoid()
	return m
}

func TestUnresolvedSymbol(t *testing.T) {
	ctx := ir.NewContext()
	defer ctx.Dispose()
	m := buildUnresolved(ctx)
	require.NoError(t, m.Verify())

	_, err := NewJIT(m)
	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, errors.ErrorUnresolvedSymbol, initErr.Diagnostic.Code)
	assert.Contains(t, initErr.Error(), "@launch_rockets")

	e, err := NewInterpreter(m)
	require.NoError(t, err)
	defer e.Dispose()
	_, err = e.RunNamed("main")
	var fault *Fault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, "main", fault.Function)
	assert.Equal(t, "unresolved external symbol @launch_rockets", fault.Reason)
}

func TestExclusiveHost(t *testing.T) {
	ctx := ir.NewContext()
	defer ctx.Dispose()
	m := samples.Sum(ctx)

	host := NewHost(true)
	_, claimed := host.Kind()
	assert.False(t, claimed)

	e, err := NewJIT(m, WithHost(host))
	require.NoError(t, err)
	defer e.Dispose()

	again, err := NewJIT(m, WithHost(host))
	require.NoError(t, err)
	again.Dispose()

	_, err = NewInterpreter(m, WithHost(host))
	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, errors.ErrorEngineInit, initErr.Diagnostic.Code)

	kind, claimed := host.Kind()
	assert.True(t, claimed)
	assert.Equal(t, JIT, kind)

	shared := NewHost(false)
	for _, k := range kinds {
		e, err := New(k, m, WithHost(shared))
		require.NoError(t, err)
		e.Dispose()
	}
}

func TestSnapshotOutlivesModule(t *testing.T) {
	ctx := ir.NewContext()
	m := samples.Sum(ctx)
	require.NoError(t, m.Verify())

	e, err := NewInterpreter(m)
	require.NoError(t, err)
	defer e.Dispose()

	// grow the module after the snapshot, then tear the session down
	extra := m.AddFunction("extra", ctx.FunctionType(ctx.VoidType(), nil, false))
	b := ctx.NewBuilder()
	b.PositionAtEnd(extra.AppendBlock("entry"))
	b.RetVoid()
	ctx.Dispose()

	r, err := e.RunNamed("sum")
	require.NoError(t, err)
	assert.Equal(t, int64(48), r.SInt())

	_, err = e.RunNamed("extra")
	assert.Error(t, err)
}

func TestRunErrors(t *testing.T) {
	ctx := ir.NewContext()
	defer ctx.Dispose()
	m := buildRecursive(ctx)
	other := samples.Sum(ctx)

	e := mustEngine(t, Interpreter, m)
	_, err := e.RunNamed("down")
	assert.ErrorContains(t, err, "takes 1 arguments, got 0")

	_, err = e.Run(other.NamedFunction("sum"), nil)
	assert.ErrorContains(t, err, "not part of module")

	assert.Same(t, m.NamedFunction("down"), e.FunctionNamed("down"))
	assert.Nil(t, e.FunctionNamed("missing"))

	e.Dispose()
	_, err = e.RunNamed("down", SIntValue(32, 1))
	assert.Error(t, err)

	_, err = NewInterpreter(nil)
	var initErr *InitError
	assert.True(t, stderrors.As(err, &initErr))
}

func TestMemoryLimit(t *testing.T) {
	ctx := ir.NewContext()
	defer ctx.Dispose()

	m := ctx.NewModule("big")
	i8 := ctx.Int8Type()
	f := m.AddFunction("grab", ctx.FunctionType(ctx.PointerType(i8), nil, false))
	b := ctx.NewBuilder()
	b.PositionAtEnd(f.AppendBlock("entry"))
	b.Ret(b.ArrayMalloc(i8, ctx.SInt(32, 1<<20), "p"))

	e := mustEngine(t, Interpreter, m, WithMemoryLimit(1<<16))
	_, err := e.RunNamed("grab")
	var fault *Fault
	require.ErrorAs(t, err, &fault)
	assert.Contains(t, fault.Reason, "out of memory")
}

func TestGlobalsPersistAcrossRuns(t *testing.T) {
	ctx := ir.NewContext()
	defer ctx.Dispose()

	i32 := ctx.Int32Type()
	m := ctx.NewModule("counter")
	g := m.AddGlobal("count", ctx.SInt(32, 5))
	f := m.AddFunction("next", ctx.FunctionType(i32, nil, false))
	b := ctx.NewBuilder()
	b.PositionAtEnd(f.AppendBlock("entry"))
	v := b.Add(b.Load(g, "v"), ctx.SInt(32, 1), "n")
	b.Store(v, g)
	b.Ret(v)

	for _, kind := range kinds {
		e := mustEngine(t, kind, m)
		for want := int64(6); want <= 8; want++ {
			r, err := e.RunNamed("next")
			require.NoError(t, err)
			assert.Equal(t, want, r.SInt())
		}
	}
}

func TestStdin(t *testing.T) {
	ctx := ir.NewContext()
	defer ctx.Dispose()

	i32 := ctx.Int32Type()
	m := ctx.NewModule("echo")
	getchar := m.AddFunction("getchar", ctx.FunctionType(i32, nil, false))
	putchar := m.AddFunction("putchar", ctx.FunctionType(i32, []ir.Type{i32}, false))
	f := m.AddFunction("echo", ctx.FunctionType(i32, nil, false))
	b := ctx.NewBuilder()
	b.PositionAtEnd(f.AppendBlock("entry"))
	c := b.Call(getchar, nil, "c")
	b.Call(putchar, []ir.Value{c}, "")
	b.Ret(c)

	var out bytes.Buffer
	e := mustEngine(t, JIT, m, WithStdin(strings.NewReader("x")), WithStdout(&out))
	r, err := e.RunNamed("echo")
	require.NoError(t, err)
	assert.Equal(t, int64('x'), r.SInt())

	r, err = e.RunNamed("echo")
	require.NoError(t, err)
	assert.Equal(t, int64(-1), r.SInt())
	assert.Equal(t, "x\xff", out.String())
}
