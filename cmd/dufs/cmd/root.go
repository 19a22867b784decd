// Package cmd wires the dufs binary's command-line surface: a single
// root command (no subcommands beyond shell-completion generation)
// binding every flag directly onto an immutable config.Config, since the
// server has no reload path and no config file.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dufs [path]",
	Short: "A simple HTTP file server",
	Long: `dufs is a single-binary HTTP file server: a browser index UI, a
WebDAV subset, streaming upload/download with byte ranges, and
on-the-fly ZIP archival, all over one filesystem root.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

// Execute runs the root command. Exit code 1 signals a startup failure
// (bad root, bad bind address, TLS load error, malformed auth rule); 0
// signals a clean shutdown.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "dufs:", err)
		os.Exit(1)
	}
}
