// SPDX-License-Identifier: Apache-2.0
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"golang.org/x/term"

	"ssakit/internal/config"
	"ssakit/internal/engine"
)

var log = commonlog.GetLogger("ssakit.cli")

var rootCmd = &cobra.Command{
	Use:           "ssakit",
	Short:         "Build, verify and run SSA modules",
	Long:          `ssakit builds SSA modules with its IR builder, verifies them and runs them on an interpreter or a closure-compiling JIT.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	},
}

var (
	configPath string
	colorMode  string
	verbose    int

	cfg = config.Default()
)

func main() {
	rootCmd.Version = Version

	rootCmd.AddCommand(brainhackCmd)
	rootCmd.AddCommand(fibCmd)
	rootCmd.AddCommand(selftestCmd)
	rootCmd.AddCommand(replCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file (default ./"+config.FileName+" when present)")
	rootCmd.PersistentFlags().StringVar(&colorMode, "color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "increase log verbosity")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		stop()
		os.Exit(1)
	}
}

// setup loads the configuration and configures colors and logging
func setup(cmd *cobra.Command) error {
	path := configPath
	if path == "" {
		if _, err := os.Stat(config.FileName); err == nil {
			path = config.FileName
		}
	}
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	switch colorMode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "auto":
		color.NoColor = !isTerminal(os.Stdout)
	default:
		return fmt.Errorf("--color must be auto, on or off, got %q", colorMode)
	}

	verbosity := cfg.Log.Verbosity + verbose
	var logPath *string
	if cfg.Log.File != "" {
		logPath = &cfg.Log.File
	}
	commonlog.Configure(verbosity, logPath)
	if path != "" {
		log.Debugf("loaded config from %s", path)
	}
	return nil
}

// isTerminal reports whether f is a terminal
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// engineKind returns the --engine flag when set, the configured kind
// otherwise
func engineKind(flag string) (engine.Kind, error) {
	if flag == "" {
		return cfg.Engine.EngineKind()
	}
	return config.EngineConfig{Kind: flag}.EngineKind()
}

// engineOptions builds the engine options shared by every command
func engineOptions() engine.Options {
	opts := cfg.Engine.Options()
	opts.Host = engine.NewHost(cfg.Engine.Exclusive)
	return opts
}
