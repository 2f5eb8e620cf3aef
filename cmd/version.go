package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hstp/node/internal/nodeconfig"
)

// versionConfigPath is the config file version looks in for a nodeId and
// configured version to report alongside the binary version.
var versionConfigPath string

// newVersionCmd prints the build-time version string injected via
// cmd.SetVersion, plus the configured node's nodeId/version when a config
// file is available (matching the teacher's SetVersionTemplate pattern of
// reporting both the CLI and the thing it talks to).
func newVersionCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "version",
		Short: "Print the node binary's version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hstp-node version %s\n", rootCmd.Version)

			cfg, err := nodeconfig.LoadNodeConfig(versionConfigPath)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "\nNode: (no config at %s)\n", versionConfigPath)
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nNode: %s (version %s)\n", cfg.NodeID, cfg.Version)
		},
	}
	c.Flags().StringVarP(&versionConfigPath, "config", "c", "config.yaml", "path to the node config file")
	return c
}
