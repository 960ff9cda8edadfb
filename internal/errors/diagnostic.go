package errors

import (
	"fmt"
	"strings"
)

// ErrorLevel represents the severity of a diagnostic
type ErrorLevel string

const (
	Error   ErrorLevel = "error"
	Warning ErrorLevel = "warning"
	Note    ErrorLevel = "note"
	Help    ErrorLevel = "help"
)

// Position is a 1-based line/column location in source text
type Position struct {
	Line   int
	Column int
}

// Location pins a diagnostic to a place in an IR module
type Location struct {
	Function string // symbol name, without the leading '@'
	Block    string // block label
	Instr    string // rendered instruction text
}

// IsZero reports whether no IR location is attached
func (l Location) IsZero() bool {
	return l.Function == "" && l.Block == "" && l.Instr == ""
}

func (l Location) String() string {
	var parts []string
	if l.Function != "" {
		parts = append(parts, "@"+l.Function)
	}
	if l.Block != "" {
		parts = append(parts, "%"+l.Block)
	}
	return strings.Join(parts, ":")
}

// Suggestion represents a suggested fix
type Suggestion struct {
	Message     string
	Replacement string
}

// Diagnostic is a structured error or warning with optional suggestions.
// Front-end diagnostics carry a source Position; verifier diagnostics carry
// an IR Location.
type Diagnostic struct {
	Level       ErrorLevel
	Code        string
	Message     string
	Position    Position
	Length      int
	Location    Location
	Suggestions []Suggestion
	Notes       []string
	HelpText    string
}

// String renders the diagnostic on one line without colors
func (d Diagnostic) String() string {
	var b strings.Builder
	b.WriteString(string(d.Level))
	if d.Code != "" {
		fmt.Fprintf(&b, "[%s]", d.Code)
	}
	b.WriteString(": ")
	b.WriteString(d.Message)
	if !d.Location.IsZero() {
		fmt.Fprintf(&b, " (in %s)", d.Location)
	} else if d.Position.Line > 0 {
		fmt.Fprintf(&b, " (at %d:%d)", d.Position.Line, d.Position.Column)
	}
	return b.String()
}

// DiagnosticBuilder provides a fluent interface for creating diagnostics
type DiagnosticBuilder struct {
	d Diagnostic
}

// NewDiagnostic starts an error-level diagnostic
func NewDiagnostic(code, message string) *DiagnosticBuilder {
	return &DiagnosticBuilder{d: Diagnostic{Level: Error, Code: code, Message: message, Length: 1}}
}

// NewWarning starts a warning-level diagnostic
func NewWarning(code, message string) *DiagnosticBuilder {
	return &DiagnosticBuilder{d: Diagnostic{Level: Warning, Code: code, Message: message, Length: 1}}
}

// At sets the source position
func (b *DiagnosticBuilder) At(pos Position) *DiagnosticBuilder {
	b.d.Position = pos
	return b
}

// WithLength sets the length of the error span
func (b *DiagnosticBuilder) WithLength(length int) *DiagnosticBuilder {
	b.d.Length = length
	return b
}

// In sets the IR location
func (b *DiagnosticBuilder) In(loc Location) *DiagnosticBuilder {
	b.d.Location = loc
	return b
}

// WithSuggestion adds a suggestion to the diagnostic
func (b *DiagnosticBuilder) WithSuggestion(message string) *DiagnosticBuilder {
	b.d.Suggestions = append(b.d.Suggestions, Suggestion{Message: message})
	return b
}

// WithReplacement adds a suggestion with replacement text
func (b *DiagnosticBuilder) WithReplacement(message, replacement string) *DiagnosticBuilder {
	b.d.Suggestions = append(b.d.Suggestions, Suggestion{Message: message, Replacement: replacement})
	return b
}

// WithNote adds a note to the diagnostic
func (b *DiagnosticBuilder) WithNote(note string) *DiagnosticBuilder {
	b.d.Notes = append(b.d.Notes, note)
	return b
}

// WithHelp sets the help text
func (b *DiagnosticBuilder) WithHelp(help string) *DiagnosticBuilder {
	b.d.HelpText = help
	return b
}

// Build returns the completed diagnostic
func (b *DiagnosticBuilder) Build() Diagnostic {
	return b.d
}

// List is an error made of one or more diagnostics
type List []Diagnostic

func (l List) Error() string {
	lines := make([]string, len(l))
	for i, d := range l {
		lines[i] = d.String()
	}
	return strings.Join(lines, "\n")
}

// HasErrors reports whether any diagnostic is error-level
func (l List) HasErrors() bool {
	for _, d := range l {
		if d.Level == Error {
			return true
		}
	}
	return false
}

// Codes returns the codes of all diagnostics, in order
func (l List) Codes() []string {
	codes := make([]string, len(l))
	for i, d := range l {
		codes[i] = d.Code
	}
	return codes
}
