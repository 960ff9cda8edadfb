package lsp

import (
	stderrors "errors"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"ssakit/grammar"
	"ssakit/internal/brainhack"
	"ssakit/internal/errors"
	"ssakit/internal/ir"
)

const source = "ssakit"

// Check parses, lints, compiles and verifies a document and returns what
// it found. An empty result means the document is clean.
func Check(name, text string) (*grammar.Program, errors.List) {
	program, err := grammar.Parse(name, text)
	if err != nil {
		var perr *grammar.Error
		if stderrors.As(err, &perr) {
			return nil, errors.List{perr.Diagnostic()}
		}
		return nil, errors.List{errors.NewDiagnostic(errors.ErrorSyntax, err.Error()).Build()}
	}

	diags := grammar.Lint(program)

	ctx := ir.NewContext()
	defer ctx.Dispose()
	m, err := brainhack.Compile(ctx, name, program)
	if err == nil {
		err = m.Verify()
	}
	if err != nil {
		var verr *ir.VerifyError
		if stderrors.As(err, &verr) {
			diags = append(diags, verr.Diagnostics...)
		} else {
			diags = append(diags, errors.NewDiagnostic(errors.ErrorInvalidOperand, err.Error()).Build())
		}
	}
	return program, diags
}

// ConvertDiagnostics maps diagnostics onto LSP ranges. IR diagnostics have
// no source position and are pinned to the start of the document.
func ConvertDiagnostics(diags errors.List) []protocol.Diagnostic {
	out := make([]protocol.Diagnostic, 0, len(diags))
	for _, d := range diags {
		line, col := 0, 0
		if d.Position.Line > 0 {
			line, col = d.Position.Line-1, max(d.Position.Column-1, 0)
		}
		length := max(d.Length, 1)

		severity := protocol.DiagnosticSeverityError
		if d.Level == errors.Warning {
			severity = protocol.DiagnosticSeverityWarning
		}
		code := protocol.IntegerOrString{Value: d.Code}

		message := d.Message
		for _, note := range d.Notes {
			message += "\nnote: " + note
		}
		if d.HelpText != "" {
			message += "\nhelp: " + d.HelpText
		}

		out = append(out, protocol.Diagnostic{
			Range: protocol.Range{
				Start: protocol.Position{Line: uint32(line), Character: uint32(col)},
				End:   protocol.Position{Line: uint32(line), Character: uint32(col + length)},
			},
			Severity: &severity,
			Code:     &code,
			Source:   ptrString(source),
			Message:  message,
		})
	}
	return out
}

func ptrString(s string) *string {
	return &s
}
