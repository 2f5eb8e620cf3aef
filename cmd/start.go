package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hstp/node/internal/did"
	"github.com/hstp/node/internal/node"
	"github.com/hstp/node/internal/nodeconfig"
	"github.com/hstp/node/internal/transport"
	"github.com/hstp/node/internal/transport/httpbind"
	"github.com/hstp/node/internal/transport/mqttbind"
	"github.com/hstp/node/internal/transport/p2pbind"
	"github.com/hstp/node/pkg/logging"
)

// startConfigPath is the path to the node's config.yaml, set via --config.
var startConfigPath string

// startWatch enables hot-reloading the directory containing the node's
// transport config files.
var startWatch bool

// startWatchDir is the directory watched when --watch is set. Defaults to
// the directory of the first configured transport file.
var startWatchDir string

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the HSTP node daemon",
		Long: `Loads the node configuration and every referenced transport file, brings
up each configured binding, and runs until interrupted (SIGINT/SIGTERM).`,
		Args: cobra.NoArgs,
		RunE: runStart,
	}
	cmd.Flags().StringVarP(&startConfigPath, "config", "c", "config.yaml", "path to the node config file")
	cmd.Flags().BoolVar(&startWatch, "watch", false, "hot-reload transport config files on change")
	cmd.Flags().StringVar(&startWatchDir, "watch-dir", "", "directory to watch when --watch is set (default: directory of the first transport file)")
	return cmd
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := nodeconfig.LoadNodeConfig(startConfigPath)
	if err != nil {
		return fmt.Errorf("loading node config: %w", err)
	}

	level := parseLogLevel(cfg.Logging.Level)
	logging.Init(level, os.Stderr)

	self, err := did.Parse(cfg.NodeID)
	if err != nil {
		return fmt.Errorf("nodeId %q is not a valid DID: %w", cfg.NodeID, err)
	}

	providers := transport.NewProviderRegistry()
	if err := providers.Register(httpbind.NewProvider()); err != nil {
		return fmt.Errorf("registering http provider: %w", err)
	}
	if err := providers.Register(mqttbind.NewProvider(self)); err != nil {
		return fmt.Errorf("registering mqtt provider: %w", err)
	}
	if err := providers.Register(p2pbind.NewProvider()); err != nil {
		return fmt.Errorf("registering p2p provider: %w", err)
	}

	n, err := node.New(node.Config{
		NodeConfig: cfg,
		Providers:  providers,
	})
	if err != nil {
		return fmt.Errorf("constructing node: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if startWatch {
		dir := startWatchDir
		if dir == "" && len(cfg.Transports) > 0 {
			dir = filepath.Dir(cfg.Transports[0])
		}
		if dir != "" {
			if err := n.WatchTransports(dir); err != nil {
				return fmt.Errorf("starting transport watcher: %w", err)
			}
		}
	}

	return n.Run(ctx)
}

func parseLogLevel(level string) logging.LogLevel {
	switch level {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
