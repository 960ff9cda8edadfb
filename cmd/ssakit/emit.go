package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"ssakit/internal/engine"
	"ssakit/internal/errors"
	"ssakit/internal/ir"
	"ssakit/internal/llvmgen"
)

// output selects what a build command does with its module
type output struct {
	llvm   bool
	run    bool
	engine string
}

// finish verifies m and then dumps, lowers or runs it. reporter renders
// verifier diagnostics.
func (o output) finish(w io.Writer, m *ir.Module, reporter *errors.ErrorReporter, stdin io.Reader) error {
	if err := m.Verify(); err != nil {
		if verr, ok := err.(*ir.VerifyError); ok {
			fmt.Fprint(os.Stderr, reporter.FormatAll(verr.Diagnostics))
		}
		return fmt.Errorf("module %s failed verification", m.Name())
	}

	switch {
	case o.llvm:
		return llvmgen.Emit(w, m)
	case o.run:
		kind, err := engineKind(o.engine)
		if err != nil {
			return err
		}
		e, err := engine.New(kind, m, engine.WithOptions(engineOptions()),
			engine.WithStdout(w), engine.WithStdin(stdin))
		if err != nil {
			return err
		}
		defer e.Dispose()

		log.Infof("running @main of %s on the %s", m.Name(), kind)
		r, err := e.RunNamed("main")
		if err != nil {
			return err
		}
		if !r.IsVoid() {
			fmt.Fprintln(os.Stderr, color.New(color.Faint).Sprintf("main returned %s", r))
		}
		return nil
	}
	return m.Dump(w)
}
