package errors

import (
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func init() {
	color.NoColor = true
}

func TestFormatSourceDiagnostic(t *testing.T) {
	source := "++[>+\n<-]]\n.."

	reporter := NewErrorReporter("loop.bf", source)

	d := NewDiagnostic(ErrorUnbalancedLoop, "unexpected ']' without matching '['").
		At(Position{Line: 2, Column: 4}).
		WithHelp("remove the bracket or add a matching '['").
		Build()
	formatted := reporter.FormatError(d)

	assert.Contains(t, formatted, "error["+ErrorUnbalancedLoop+"]")
	assert.Contains(t, formatted, "loop.bf:2:4")
	assert.Contains(t, formatted, "<-]]")
	assert.Contains(t, formatted, "   ^")
	assert.Contains(t, formatted, "++[>+")
	assert.Contains(t, formatted, "help: remove the bracket")
}

func TestFormatIRDiagnostic(t *testing.T) {
	reporter := NewErrorReporter("fib", "")

	d := NewDiagnostic(ErrorPhiPredecessors, "phi incoming blocks do not match predecessors").
		In(Location{Function: "fib", Block: "end", Instr: "%r = phi i64 [ 0, %then0 ]"}).
		WithNote("missing incoming value for %else1").
		Build()
	formatted := reporter.Format(d)

	assert.Contains(t, formatted, "error["+ErrorPhiPredecessors+"]")
	assert.Contains(t, formatted, "fib @fib:%end")
	assert.Contains(t, formatted, "%r = phi i64 [ 0, %then0 ]")
	assert.Contains(t, formatted, "note: missing incoming value for %else1")
}

func TestFormatSuggestions(t *testing.T) {
	reporter := NewErrorReporter("m", "")

	d := NewWarning(ErrorCallArity, "call passes 1 argument").
		In(Location{Function: "main"}).
		WithSuggestion("pass 2 arguments").
		WithReplacement("declare it variadic", "declare i32 @f(i32, ...)").
		Build()
	formatted := reporter.Format(d)

	assert.Contains(t, formatted, "warning["+ErrorCallArity+"]")
	assert.Contains(t, formatted, "help try: pass 2 arguments")
	assert.Contains(t, formatted, "declare i32 @f(i32, ...)")
}

func TestDiagnosticString(t *testing.T) {
	d := NewDiagnostic(ErrorMissingTerminator, "block does not end in a terminator").
		In(Location{Function: "main", Block: "entry"}).
		Build()
	assert.Equal(t, "error[E0600]: block does not end in a terminator (in @main:%entry)", d.String())

	src := NewDiagnostic(ErrorSyntax, "unexpected token").At(Position{Line: 3, Column: 1}).Build()
	assert.Equal(t, "error[E0100]: unexpected token (at 3:1)", src.String())
}

func TestListError(t *testing.T) {
	l := List{
		NewDiagnostic(ErrorTypeMismatch, "a").Build(),
		NewWarning(ErrorDuplicateCase, "b").Build(),
	}

	assert.Equal(t, "error[E0200]: a\nwarning[E0302]: b", l.Error())
	assert.True(t, l.HasErrors())
	assert.Equal(t, []string{ErrorTypeMismatch, ErrorDuplicateCase}, l.Codes())
	assert.False(t, List{NewWarning(ErrorDuplicateCase, "b").Build()}.HasErrors())
}
