package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ssakit/grammar"
	"ssakit/internal/brainhack"
	"ssakit/internal/errors"
	"ssakit/internal/ir"
)

var (
	brainhackOut   output
	brainhackTape  uint64
	brainhackInput string
	brainhackWatch bool
)

var brainhackCmd = &cobra.Command{
	Use:   "brainhack [file]",
	Short: "Compile a brainhack program",
	Long: `Compile a brainhack program read from file, or from standard input when no file
is given. The IR is printed unless --llvm or --run is set.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !brainhackWatch {
			return buildBrainhack(cmd, args)
		}
		if len(args) == 0 {
			return fmt.Errorf("--watch needs a source file")
		}
		rebuild := func() {
			if err := buildBrainhack(cmd, args); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), color.RedString("error:"), err)
			}
		}
		rebuild()
		return watch(cmd.Context(), args[0], rebuild)
	},
}

func buildBrainhack(cmd *cobra.Command, args []string) error {
	name, source, err := readSource(cmd, args)
	if err != nil {
		return err
	}

	reporter := errors.NewErrorReporter(name, source)
	program, err := grammar.Parse(name, source)
	if err != nil {
		if perr, ok := err.(*grammar.Error); ok {
			fmt.Fprint(cmd.ErrOrStderr(), reporter.Format(perr.Diagnostic()))
			return fmt.Errorf("%s could not be parsed", name)
		}
		return err
	}
	if warnings := grammar.Lint(program); len(warnings) > 0 {
		fmt.Fprint(cmd.ErrOrStderr(), reporter.FormatAll(warnings))
	}

	tape := cfg.Brainhack.TapeSize
	if cmd.Flags().Changed("tape") {
		tape = brainhackTape
	}

	ctx := ir.NewContext()
	defer ctx.Dispose()
	m, err := brainhack.CompileWith(ctx, "brainhack", program, brainhack.Options{TapeSize: tape})
	if err != nil {
		return err
	}

	stdin, err := programInput(args)
	if err != nil {
		return err
	}
	if c, ok := stdin.(io.Closer); ok && stdin != os.Stdin {
		defer c.Close()
	}
	return brainhackOut.finish(cmd.OutOrStdout(), m, reporter, stdin)
}

func init() {
	f := brainhackCmd.Flags()
	f.BoolVar(&brainhackOut.llvm, "llvm", false, "print LLVM assembly instead of the IR")
	f.BoolVar(&brainhackOut.run, "run", false, "run the program")
	f.StringVar(&brainhackOut.engine, "engine", "", "engine for --run (interpreter|jit)")
	f.Uint64Var(&brainhackTape, "tape", 0, "number of tape cells (default from config)")
	f.StringVar(&brainhackInput, "input", "", "file the program reads with ','")
	f.BoolVar(&brainhackWatch, "watch", false, "rebuild whenever the source file changes")
	brainhackCmd.MarkFlagsMutuallyExclusive("llvm", "run")
}

func readSource(cmd *cobra.Command, args []string) (string, string, error) {
	if len(args) == 0 {
		source, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", "", fmt.Errorf("failed to read standard input: %w", err)
		}
		return "<stdin>", string(source), nil
	}
	source, err := os.ReadFile(args[0])
	if err != nil {
		return "", "", fmt.Errorf("failed to read file: %w", err)
	}
	return filepath.Base(args[0]), string(source), nil
}

// programInput is --input when given. Standard input is only available
// to the program when the source came from a file.
func programInput(args []string) (io.Reader, error) {
	if brainhackInput != "" {
		f, err := os.Open(brainhackInput)
		if err != nil {
			return nil, fmt.Errorf("failed to open input: %w", err)
		}
		return f, nil
	}
	if len(args) > 0 {
		return os.Stdin, nil
	}
	return nil, nil
}
