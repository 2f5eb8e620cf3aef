package node

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hstp/node/pkg/logging"
)

// DefaultShutdownTimeout bounds how long Run waits for Stop to finish a
// graceful shutdown after a signal arrives.
const DefaultShutdownTimeout = 15 * time.Second

// Run starts the node and blocks until ctx is cancelled or the process
// receives SIGINT/SIGTERM, then performs a graceful shutdown. This is the
// long-running daemon mode a cmd entrypoint drives (mirrors the teacher's
// non-interactive orchestrator run loop).
func (n *Node) Run(ctx context.Context) error {
	if err := n.Start(ctx); err != nil {
		return err
	}

	logging.Info("node", "node running, waiting for shutdown signal")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
		logging.Info("node", "context cancelled, shutting down")
	case sig := <-sigCh:
		logging.Info("node", "received signal %s, shutting down", sig)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	return n.Stop(stopCtx)
}
