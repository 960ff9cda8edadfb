package repl

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ssakit/internal/engine"
)

func init() {
	color.NoColor = true
}

func TestStartRunsEachLine(t *testing.T) {
	in := strings.NewReader("++++++++[>++++++++<-]>+.\n\n+++[>++++++++++++++++<-]>.\n")
	var out bytes.Buffer
	Start(in, &out, Config{Kind: engine.Interpreter})

	assert.Equal(t, ">> A\n>> >> 0\n>> \n", out.String())
}

func TestEvalReportsSyntaxErrors(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Eval(&out, "line1", "+]", Config{}))
	assert.Contains(t, out.String(), "error[E0101]")
	assert.Contains(t, out.String(), "line1:1:2")
}

func TestEvalDumps(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Eval(&out, "line1", ":ir +", Config{}))
	assert.Contains(t, out.String(), "define void @main()")
	assert.Contains(t, out.String(), "declare i8* @calloc(i64, i64)")

	out.Reset()
	require.NoError(t, Eval(&out, "line2", ":llvm +.", Config{}))
	assert.Contains(t, out.String(), "call i32 @putchar(")
}

func TestEvalJITFault(t *testing.T) {
	var out bytes.Buffer
	err := Eval(&out, "line1", "<.", Config{Kind: engine.JIT})
	var fault *engine.Fault
	assert.ErrorAs(t, err, &fault)
}
