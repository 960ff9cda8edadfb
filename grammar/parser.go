package grammar

import (
	"fmt"
	"os"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"ssakit/internal/errors"
)

var parser = participle.MustBuild[Program](
	participle.Lexer(BrainhackLexer),
	participle.Elide("Comment"),
	participle.UseLookahead(2),
)

// Error is a syntax error with the position it was found at
type Error struct {
	Code string
	Pos  lexer.Position
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename, e.Pos.Line, e.Pos.Column, e.Msg)
}

// Diagnostic converts e for the error reporter
func (e *Error) Diagnostic() errors.Diagnostic {
	b := errors.NewDiagnostic(e.Code, e.Msg).At(errors.Position{Line: e.Pos.Line, Column: e.Pos.Column})
	if e.Code == errors.ErrorUnbalancedLoop {
		b.WithHelp("every '[' needs a matching ']' after it")
	}
	return b.Build()
}

// ParseFile reads and parses a source file
func ParseFile(path string) (*Program, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(path, string(source))
}

// Parse parses source. Bracket mismatches are reported before anything
// else, at the offending bracket.
func Parse(name, source string) (*Program, error) {
	if err := checkBrackets(name, source); err != nil {
		return nil, err
	}
	program, err := parser.ParseString(name, source)
	if err != nil {
		if pe, ok := err.(participle.Error); ok {
			return nil, &Error{Code: errors.ErrorSyntax, Pos: pe.Position(), Msg: pe.Message()}
		}
		return nil, err
	}
	return program, nil
}

func checkBrackets(name, source string) error {
	var open []lexer.Position
	pos := lexer.Position{Filename: name, Line: 1, Column: 1}
	for i := 0; i < len(source); i++ {
		switch source[i] {
		case '[':
			open = append(open, pos)
		case ']':
			if len(open) == 0 {
				return &Error{Code: errors.ErrorUnbalancedLoop, Pos: pos, Msg: "unexpected ']' without matching '['"}
			}
			open = open[:len(open)-1]
		}
		pos.Offset++
		if source[i] == '\n' {
			pos.Line++
			pos.Column = 1
		} else {
			pos.Column++
		}
	}
	if len(open) > 0 {
		return &Error{Code: errors.ErrorUnbalancedLoop, Pos: open[len(open)-1], Msg: "unclosed '['"}
	}
	return nil
}
