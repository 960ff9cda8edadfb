// SPDX-License-Identifier: Apache-2.0
package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"ssakit/internal/lsp"
)

const lsName = "ssakit"

var version = "0.1.0-dev"

var (
	verbosity int
	logFile   string
)

var rootCmd = &cobra.Command{
	Use:           "ssakit-lsp",
	Short:         "Language server for brainhack sources",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// stdout carries the protocol, so logs go to stderr or a file
		var path *string
		if logFile != "" {
			path = &logFile
		}
		commonlog.Configure(verbosity, path)
		log := commonlog.GetLogger("ssakit.lsp")

		h := lsp.NewHandler()
		handler := protocol.Handler{
			Initialize:                     h.Initialize,
			Initialized:                    h.Initialized,
			Shutdown:                       h.Shutdown,
			SetTrace:                       h.SetTrace,
			TextDocumentDidOpen:            h.TextDocumentDidOpen,
			TextDocumentDidClose:           h.TextDocumentDidClose,
			TextDocumentDidChange:          h.TextDocumentDidChange,
			TextDocumentCompletion:         h.TextDocumentCompletion,
			TextDocumentHover:              h.TextDocumentHover,
			TextDocumentSemanticTokensFull: h.TextDocumentSemanticTokensFull,
		}

		s := server.NewServer(&handler, lsName, false)
		log.Infof("starting %s language server %s", lsName, version)
		return s.RunStdio()
	},
}

func main() {
	rootCmd.Version = version
	rootCmd.Flags().IntVar(&verbosity, "verbosity", 1, "log verbosity")
	rootCmd.Flags().StringVar(&logFile, "log", "", "log to this file instead of stderr")

	if err := rootCmd.Execute(); err != nil {
		commonlog.GetLogger("ssakit.lsp").Errorf("language server stopped: %s", err)
		os.Exit(1)
	}
}
