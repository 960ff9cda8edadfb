package main

import (
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"ssakit/internal/engine"
)

// Version is overridden at link time with -ldflags "-X main.Version=..."
var Version = "0.1.0-dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and engine information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		externals := engine.Externals()
		sort.Strings(externals)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "ssakit %s (%s, %s/%s)\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		fmt.Fprintf(out, "engines: %s, %s\n", engine.Interpreter, engine.JIT)
		fmt.Fprintf(out, "externals: %s\n", strings.Join(externals, " "))
	},
}
