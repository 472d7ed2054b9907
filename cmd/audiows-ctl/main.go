// Audiows-ctl is the command-line client for audiows servers.
//
// It sends control messages to a running audiows-server, reads its state,
// finds servers on the local network over mDNS, and provides an interactive
// console for live control.
//
// Usage:
//
//	audiows-ctl [command] [flags]
//
// Running without arguments launches the interactive console.
// See 'audiows-ctl --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/audiows/internal/logging"
	"github.com/muurk/audiows/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "audiows-ctl",
	Short: "Audiows control client",
	Long: `A command-line client for audiows WebSocket control servers.

Toggles recording, sets the amplitude, sends raw frames, reads the shared
state and discovers servers on the local network.

If no command is specified, the interactive console will launch automatically.`,
	Version: version.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Initialize(logLevel)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: run console when no subcommand provided
		return runConsole(cmd, args)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("audiows-ctl %s (commit: %s)\n", version.Version, version.Commit)
	},
}
