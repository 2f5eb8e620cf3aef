package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, bad config).
	ExitCodeError = 1
)

// rootCmd is the base command for the node binary. It is the entry point
// when the binary is invoked without any subcommand.
var rootCmd = &cobra.Command{
	Use:   "hstp-node",
	Short: "Run an HSTP node",
	Long: `hstp-node runs a Hypermedia Spatial Transport Protocol node: it loads a
node configuration and a set of transport bindings, then dispatches inbound
and outbound HSTP messages between them.`,
	SilenceUsage: true,
}

// SetVersion sets the version for the root command. Called from main with
// the build-time version string.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute is the CLI entry point, called from main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "hstp-node version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitCodeError)
	}
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newStartCmd())
}
