package main

import (
	"fmt"
	"os"
	"os/user"

	"github.com/spf13/cobra"

	"ssakit/repl"
)

var replEngine string

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Run brainhack lines interactively",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := engineKind(replEngine)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if isTerminal(os.Stdin) {
			name := "there"
			if u, err := user.Current(); err == nil {
				name = u.Username
			}
			fmt.Fprintf(out, "Welcome to the brainhack REPL, %s! Prefix a line with :ir or :llvm to see its module.\n", name)
		}
		repl.Start(cmd.InOrStdin(), out, repl.Config{
			Kind:     kind,
			Engine:   engineOptions(),
			TapeSize: cfg.Brainhack.TapeSize,
		})
		return nil
	},
}

func init() {
	replCmd.Flags().StringVar(&replEngine, "engine", "", "engine to run lines on (interpreter|jit)")
}
