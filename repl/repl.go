// Package repl runs brainhack one line at a time. Every line is compiled
// into a fresh session, verified and executed.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"ssakit/grammar"
	"ssakit/internal/brainhack"
	"ssakit/internal/engine"
	"ssakit/internal/errors"
	"ssakit/internal/ir"
	"ssakit/internal/llvmgen"
)

const PROMPT = ">> "

// Config controls how lines are executed
type Config struct {
	Kind     engine.Kind
	Engine   engine.Options
	TapeSize uint64
}

// Start reads lines from in until it is exhausted. Program output and
// diagnostics go to out. A line starting with :ir or :llvm prints the
// compiled module instead of running it.
func Start(in io.Reader, out io.Writer, cfg Config) {
	scanner := bufio.NewScanner(in)
	for n := 1; ; n++ {
		fmt.Fprint(out, PROMPT)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := Eval(out, fmt.Sprintf("line%d", n), line, cfg); err != nil {
			fmt.Fprintln(out, err)
		}
	}
}

// Eval compiles and handles one line. Diagnostics are rendered to out;
// the returned error is for failures during execution.
func Eval(out io.Writer, name, line string, cfg Config) error {
	mode := ""
	for _, m := range []string{":ir", ":llvm"} {
		if rest, ok := strings.CutPrefix(line, m); ok {
			mode, line = m, rest
			break
		}
	}

	reporter := errors.NewErrorReporter(name, line)
	program, err := grammar.Parse(name, line)
	if err != nil {
		if perr, ok := err.(*grammar.Error); ok {
			fmt.Fprint(out, reporter.Format(perr.Diagnostic()))
			return nil
		}
		return err
	}

	ctx := ir.NewContext()
	defer ctx.Dispose()
	m, err := brainhack.CompileWith(ctx, name, program, brainhack.Options{TapeSize: cfg.TapeSize})
	if err != nil {
		return err
	}
	if err := m.Verify(); err != nil {
		if verr, ok := err.(*ir.VerifyError); ok {
			fmt.Fprint(out, reporter.FormatAll(verr.Diagnostics))
			return nil
		}
		return err
	}

	switch mode {
	case ":ir":
		return m.Dump(out)
	case ":llvm":
		return llvmgen.Emit(out, m)
	}

	e, err := engine.New(cfg.Kind, m, engine.WithOptions(cfg.Engine), engine.WithStdout(out))
	if err != nil {
		return err
	}
	defer e.Dispose()
	_, err = e.RunNamed("main")
	if strings.Contains(line, ".") {
		fmt.Fprintln(out)
	}
	return err
}
