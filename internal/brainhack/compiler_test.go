package brainhack

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ssakit/grammar"
	"ssakit/internal/engine"
	"ssakit/internal/ir"
)

const helloWorld = `++++++++[>++++[>++>+++>+++>+<<<<-]>+>+>->>+[<]<-]>>.>---.+++++++..+++.>>.<-.<.+++.------.--------.>>+.>++.`

func compile(t *testing.T, ctx *ir.Context, source string) *ir.Module {
	t.Helper()
	program, err := grammar.Parse("test.bf", source)
	require.NoError(t, err)
	m, err := Compile(ctx, "brainhack", program)
	require.NoError(t, err)
	require.NoError(t, m.Verify())
	return m
}

func run(t *testing.T, kind engine.Kind, source, input string) (string, error) {
	t.Helper()
	ctx := ir.NewContext()
	defer ctx.Dispose()

	var out bytes.Buffer
	e, err := engine.New(kind, compile(t, ctx, source),
		engine.WithStdout(&out), engine.WithStdin(strings.NewReader(input)))
	require.NoError(t, err)
	defer e.Dispose()

	_, err = e.RunNamed("main")
	return out.String(), err
}

func TestHelloWorld(t *testing.T) {
	for _, kind := range []engine.Kind{engine.Interpreter, engine.JIT} {
		t.Run(kind.String(), func(t *testing.T) {
			out, err := run(t, kind, helloWorld, "")
			require.NoError(t, err)
			assert.Equal(t, "Hello World!\n", out)
		})
	}
}

func TestEcho(t *testing.T) {
	// copy input until end of input, which reads as 0
	out, err := run(t, engine.Interpreter, ",[.,]", "ssa")
	require.NoError(t, err)
	assert.Equal(t, "ssa", out)
}

func TestCellsWrap(t *testing.T) {
	// 0 - 1 wraps to 255, +2 wraps to 1, so '!' is 32 + 1
	source := "-++>" + strings.Repeat("+", 32) + "<[>+<-]>."
	out, err := run(t, engine.JIT, source, "")
	require.NoError(t, err)
	assert.Equal(t, "!", out)
}

func TestRunsAreFolded(t *testing.T) {
	ctx := ir.NewContext()
	defer ctx.Dispose()

	m := compile(t, ctx, "+++++ >>> -- <")
	text := m.String()
	assert.Contains(t, text, "add i8 %cell, 5")
	assert.Contains(t, text, "add i8 %cell2, -2")
	assert.Contains(t, text, "getelementptr inbounds i8, i8* %head1, i32 3")
	assert.Contains(t, text, "i32 -1")
}

func TestLoopBlocks(t *testing.T) {
	ctx := ir.NewContext()
	defer ctx.Dispose()

	m := compile(t, ctx, "+[-[-]]")
	main := m.NamedFunction("main")
	var names []string
	for _, b := range main.Blocks() {
		names = append(names, b.Name())
	}
	assert.Equal(t, []string{"entry", "while_cond", "while_body", "while_end", "while_cond", "while_body", "while_end"}, names)

	for _, name := range []string{"calloc", "free", "putchar", "getchar"} {
		f := m.NamedFunction(name)
		require.NotNil(t, f, name)
		assert.True(t, f.IsDeclaration())
	}
}

func TestTapeUnderflowFaults(t *testing.T) {
	_, err := run(t, engine.Interpreter, "<+", "")
	var fault *engine.Fault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, "main", fault.Function)
}

func TestCustomTapeSize(t *testing.T) {
	ctx := ir.NewContext()
	defer ctx.Dispose()

	program, err := grammar.Parse("t.bf", "+")
	require.NoError(t, err)
	m, err := CompileWith(ctx, "small", program, Options{TapeSize: 16})
	require.NoError(t, err)
	assert.Contains(t, m.String(), "i64 16, i64 1")
}

func TestCompileNil(t *testing.T) {
	ctx := ir.NewContext()
	defer ctx.Dispose()

	_, err := Compile(ctx, "nil", nil)
	assert.Error(t, err)
}
