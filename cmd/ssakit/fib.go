package main

import (
	"github.com/spf13/cobra"

	"ssakit/internal/errors"
	"ssakit/internal/fib"
	"ssakit/internal/ir"
)

var (
	fibOut output
	fibN   uint64
)

var fibCmd = &cobra.Command{
	Use:   "fib",
	Short: "Build the recursive Fibonacci module",
	Long:  `Build a module whose main prints fib(n). The IR is printed unless --llvm or --run is set.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n := cfg.Fib.N
		if cmd.Flags().Changed("n") {
			n = fibN
		}

		ctx := ir.NewContext()
		defer ctx.Dispose()
		m := fib.BuildN(ctx, n)
		return fibOut.finish(cmd.OutOrStdout(), m, errors.NewErrorReporter(m.Name(), ""), nil)
	},
}

func init() {
	f := fibCmd.Flags()
	f.Uint64Var(&fibN, "n", fib.DefaultN, "argument passed to fib")
	f.BoolVar(&fibOut.llvm, "llvm", false, "print LLVM assembly instead of the IR")
	f.BoolVar(&fibOut.run, "run", false, "run main")
	f.StringVar(&fibOut.engine, "engine", "", "engine for --run (interpreter|jit)")
	fibCmd.MarkFlagsMutuallyExclusive("llvm", "run")
}
