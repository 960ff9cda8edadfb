package grammar_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ssakit/grammar"
	"ssakit/internal/errors"
)

const hello = `hello world
++++++++[>++++[>++>+++>+++>+<<<<-]>+>+>->>+[<]<-]>>.>---.+++++++..+++.>>.<-.<.+++.------.--------.>>+.>++.`

func TestParseRuns(t *testing.T) {
	program, err := grammar.Parse("runs.bf", "+++ comment >>-- .,")
	require.NoError(t, err)
	require.Len(t, program.Items, 6)

	first := program.Items[0].Run
	require.NotNil(t, first)
	assert.Equal(t, byte('+'), first.Op())
	assert.Equal(t, 3, first.Count())
	assert.Equal(t, 1, first.Pos.Column)

	assert.Equal(t, ">>", program.Items[1].Run.Text)
	assert.Equal(t, "--", program.Items[2].Run.Text)
	assert.True(t, program.Items[4].Output)
	assert.True(t, program.Items[5].Input)
	assert.Equal(t, "+++>>--.,", program.String())
}

func TestParseLoops(t *testing.T) {
	program, err := grammar.Parse("hello.bf", hello)
	require.NoError(t, err)

	outer := program.Items[1].Loop
	require.NotNil(t, outer)
	assert.Equal(t, 2, outer.Pos.Line)
	assert.Equal(t, 9, outer.Pos.Column)

	inner := outer.Body[2].Loop
	require.NotNil(t, inner)
	assert.Equal(t, ">++>+++>+++>+<<<<-", inner.String()[1:len(inner.String())-1])

	stats := program.Stats()
	assert.Equal(t, 3, stats.Loops)
	assert.Equal(t, 2, stats.Depth)
	assert.Equal(t, hello[len("hello world\n"):], program.String())
}

func TestFormat(t *testing.T) {
	program, err := grammar.Parse("f.bf", "++[>+[-]<-].")
	require.NoError(t, err)
	assert.Equal(t, "++\n[\n    >+\n    [\n        -\n    ]\n    <-\n]\n.\n", program.Format())
}

func TestUnbalancedLoops(t *testing.T) {
	tests := []struct {
		name   string
		source string
		line   int
		column int
		msg    string
	}{
		{"stray close", "++\n<-]]", 2, 3, "unexpected ']'"},
		{"unclosed open", "[[-]", 1, 1, "unclosed '['"},
		{"close first", "]", 1, 1, "unexpected ']'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := grammar.Parse("bad.bf", tt.source)
			var perr *grammar.Error
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, errors.ErrorUnbalancedLoop, perr.Code)
			assert.Equal(t, tt.line, perr.Pos.Line)
			assert.Equal(t, tt.column, perr.Pos.Column)
			assert.Contains(t, perr.Msg, tt.msg)

			d := perr.Diagnostic()
			assert.Equal(t, tt.line, d.Position.Line)
			assert.NotEmpty(t, d.HelpText)
		})
	}
}

func TestEmptyProgram(t *testing.T) {
	program, err := grammar.Parse("empty.bf", "only commentary here")
	require.NoError(t, err)
	assert.Empty(t, program.Items)
	assert.Equal(t, "", program.Format())
}

func TestLoopCloseBracketPosition(t *testing.T) {
	program, err := grammar.Parse("close.bf", "[\n  -\n ]")
	require.NoError(t, err)
	loop := program.Items[0].Loop
	require.NotNil(t, loop.End)
	assert.Equal(t, 3, loop.End.Pos.Line)
	assert.Equal(t, 2, loop.End.Pos.Column)
}

func TestLintDeadLoops(t *testing.T) {
	program, err := grammar.Parse("dead.bf", "[comment.]+[-][never]>[fine]")
	require.NoError(t, err)

	dead := grammar.DeadLoops(program)
	require.Len(t, dead, 2)
	assert.Equal(t, 1, dead[0].Pos.Column)
	assert.Equal(t, 15, dead[1].Pos.Column)

	warnings := grammar.Lint(program)
	require.Len(t, warnings, 2)
	assert.False(t, warnings.HasErrors())
	assert.Equal(t, errors.ErrorDeadLoop, warnings[0].Code)
	assert.Equal(t, 10, warnings[0].Length)
	assert.Equal(t, 7, warnings[1].Length)
}
