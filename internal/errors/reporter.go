package errors

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// ErrorReporter renders diagnostics for one input. Source diagnostics are
// shown against the input's lines; IR diagnostics are shown against the
// function and block they were raised in.
type ErrorReporter struct {
	filename string
	lines    []string
}

// NewErrorReporter creates a reporter for a named source text. The source
// may be empty when only IR diagnostics will be reported.
func NewErrorReporter(filename, source string) *ErrorReporter {
	return &ErrorReporter{
		filename: filename,
		lines:    strings.Split(source, "\n"),
	}
}

// Format picks the source or IR layout depending on what d carries
func (er *ErrorReporter) Format(d Diagnostic) string {
	if d.Location.IsZero() && d.Position.Line > 0 {
		return er.FormatError(d)
	}
	return er.FormatIR(d)
}

// FormatAll formats every diagnostic of l in order
func (er *ErrorReporter) FormatAll(l List) string {
	var result strings.Builder
	for _, d := range l {
		result.WriteString(er.Format(d))
	}
	return result.String()
}

// FormatError formats a source diagnostic with a caret marker and one line
// of context on each side
func (er *ErrorReporter) FormatError(d Diagnostic) string {
	var result strings.Builder

	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	er.writeHeader(&result, d)

	width := er.getLineNumberWidth(d.Position.Line)
	indent := strings.Repeat(" ", width)

	// --> file:line:column
	result.WriteString(fmt.Sprintf("%s %s %s:%d:%d\n",
		indent, dim("-->"), er.filename, d.Position.Line, d.Position.Column))
	result.WriteString(fmt.Sprintf("%s %s\n", indent, dim("│")))

	line := d.Position.Line
	if line > 1 && line-1 <= len(er.lines) {
		result.WriteString(fmt.Sprintf("%s %s %s\n",
			dim(fmt.Sprintf("%*d", width, line-1)), dim("│"), er.lines[line-2]))
	}
	if line > 0 && line <= len(er.lines) {
		result.WriteString(fmt.Sprintf("%s %s %s\n",
			bold(fmt.Sprintf("%*d", width, line)), dim("│"), er.lines[line-1]))
		result.WriteString(fmt.Sprintf("%s %s %s\n",
			indent, dim("│"), er.createMarker(d.Position.Column, d.Length, d.Level)))
	}
	if line > 0 && line < len(er.lines) {
		result.WriteString(fmt.Sprintf("%s %s %s\n",
			dim(fmt.Sprintf("%*d", width, line+1)), dim("│"), er.lines[line]))
	}

	er.writeFooter(&result, d, indent)
	return result.String()
}

// FormatIR formats a verifier diagnostic: the offending function and block,
// then the rendered instruction if there is one
func (er *ErrorReporter) FormatIR(d Diagnostic) string {
	var result strings.Builder

	dim := color.New(color.Faint).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()
	indent := "   "

	er.writeHeader(&result, d)

	where := d.Location.String()
	if where == "" {
		where = "<module>"
	}
	if er.filename != "" {
		where = er.filename + " " + where
	}
	result.WriteString(fmt.Sprintf("%s %s %s\n", indent, dim("-->"), where))

	if d.Location.Instr != "" {
		result.WriteString(fmt.Sprintf("%s %s\n", indent, dim("│")))
		result.WriteString(fmt.Sprintf("%s %s %s\n", indent, dim("│"), bold(d.Location.Instr)))
	}

	er.writeFooter(&result, d, indent)
	return result.String()
}

// writeHeader writes "error[E0001]: message"
func (er *ErrorReporter) writeHeader(result *strings.Builder, d Diagnostic) {
	levelColor := er.getLevelColor(d.Level)
	if d.Code != "" {
		result.WriteString(fmt.Sprintf("%s[%s]: %s\n", levelColor(string(d.Level)), d.Code, d.Message))
		return
	}
	result.WriteString(fmt.Sprintf("%s: %s\n", levelColor(string(d.Level)), d.Message))
}

// writeFooter writes suggestions, notes and help text, then a blank line
func (er *ErrorReporter) writeFooter(result *strings.Builder, d Diagnostic, indent string) {
	dim := color.New(color.Faint).SprintFunc()

	if len(d.Suggestions) > 0 {
		suggestionColor := color.New(color.FgCyan).SprintFunc()
		result.WriteString(fmt.Sprintf("%s %s\n", indent, dim("│")))
		for i, s := range d.Suggestions {
			label := suggestionColor("    ")
			if i == 0 {
				label = suggestionColor("help") + " " + suggestionColor("try") + ":"
			}
			result.WriteString(fmt.Sprintf("%s %s %s\n", indent, label, s.Message))
			if s.Replacement != "" {
				replacement := strings.ReplaceAll(s.Replacement, "\n", fmt.Sprintf("\n%s %s ", indent, dim("│")))
				result.WriteString(fmt.Sprintf("%s %s %s\n", indent, suggestionColor("│"), suggestionColor(replacement)))
			}
		}
	}

	noteColor := color.New(color.FgBlue).SprintFunc()
	for _, note := range d.Notes {
		result.WriteString(fmt.Sprintf("%s %s %s %s\n", indent, dim("│"), noteColor("note:"), note))
	}

	if d.HelpText != "" {
		helpColor := color.New(color.FgGreen).SprintFunc()
		result.WriteString(fmt.Sprintf("%s %s %s %s\n", indent, dim("│"), helpColor("help:"), d.HelpText))
	}

	result.WriteString("\n")
}

// getLevelColor returns the appropriate color function for an error level
func (er *ErrorReporter) getLevelColor(level ErrorLevel) func(...interface{}) string {
	switch level {
	case Warning:
		return color.New(color.FgYellow, color.Bold).SprintFunc()
	case Note:
		return color.New(color.FgBlue, color.Bold).SprintFunc()
	case Help:
		return color.New(color.FgGreen, color.Bold).SprintFunc()
	default:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	}
}

// createMarker creates the caret underline for a span
func (er *ErrorReporter) createMarker(column, length int, level ErrorLevel) string {
	if length <= 0 {
		length = 1
	}
	markerColor := color.New(color.FgRed, color.Bold).SprintFunc()
	if level == Warning {
		markerColor = color.New(color.FgYellow, color.Bold).SprintFunc()
	}
	return strings.Repeat(" ", max(0, column-1)) + markerColor(strings.Repeat("^", length))
}

// getLineNumberWidth calculates the width needed for line numbers
func (er *ErrorReporter) getLineNumberWidth(line int) int {
	width := len(fmt.Sprintf("%d", line))
	if width < 3 {
		width = 3 // minimum width for visual alignment
	}
	return width
}
