// Package node is the lifecycle binding (§4.9, component K): it wires the
// operation registry, engine, transport manager, and activity manager into
// one running process, and owns the bootstrap/shutdown sequence a cmd
// entrypoint drives.
//
// The Node follows the same two-phase pattern the rest of this corpus
// uses for its top-level process type: a constructor that loads
// configuration and assembles every component (New), and a Run that
// blocks until signalled to stop.
package node

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/hstp/node/internal/activitymgr"
	"github.com/hstp/node/internal/did"
	"github.com/hstp/node/internal/engine"
	"github.com/hstp/node/internal/hstp"
	"github.com/hstp/node/internal/metrics"
	"github.com/hstp/node/internal/nodeconfig"
	"github.com/hstp/node/internal/nodeerr"
	"github.com/hstp/node/internal/operation"
	"github.com/hstp/node/internal/pingpong"
	"github.com/hstp/node/internal/tracing"
	"github.com/hstp/node/internal/transport"
	"github.com/hstp/node/internal/transportmgr"
	"github.com/hstp/node/internal/validator"
	"github.com/hstp/node/pkg/logging"
)

// Config assembles a Node. Providers, Resolver, and Verifier are supplied
// by the caller (the cmd layer) since their concrete implementations
// (httpbind/mqttbind/p2pbind, a DID-document store, a credential checker)
// live outside the core and are selected at the edge of the process.
type Config struct {
	NodeConfig        nodeconfig.NodeConfig
	Transports        []nodeconfig.TransportRecord
	Providers         *transport.ProviderRegistry
	Resolver          did.Resolver
	Verifier          did.Verifier
	ExtraHandlers     []operation.Handler
	ActivityValidator validator.ActivityValidator
	ActivityExecutors []activitymgr.Executor
}

// Node is the fully wired HSTP node process.
type Node struct {
	self did.DID
	cfg  nodeconfig.NodeConfig

	registry    *operation.Registry
	transportMg *transportmgr.Manager
	eng         *engine.Engine
	activities  *activitymgr.Manager
	providers   *transport.ProviderRegistry
	watcher     *nodeconfig.Watcher

	metricsSrv      *http.Server
	tracingShutdown func(context.Context) error

	mu      sync.Mutex
	started bool
}

// New assembles a Node from cfg without starting anything. Construction
// failures (a malformed node DID, an engine that can't build its de-dup
// cache) are returned rather than panicking so a cmd entrypoint can report
// them cleanly.
func New(cfg Config) (*Node, error) {
	self, err := did.Parse(cfg.NodeConfig.NodeID)
	if err != nil {
		return nil, nodeerr.Wrap(nodeerr.KindConfig, "NODE_ID_INVALID",
			fmt.Sprintf("nodeId %q is not a valid DID", cfg.NodeConfig.NodeID), err)
	}

	registry := operation.NewRegistry()
	if err := registry.RegisterAll(pingpong.Handlers()...); err != nil {
		return nil, nodeerr.Wrap(nodeerr.KindConfig, "PINGPONG_REGISTER_FAILED", "could not register built-in ping/pong handlers", err)
	}
	if err := registry.RegisterAll(cfg.ExtraHandlers...); err != nil {
		return nil, nodeerr.Wrap(nodeerr.KindConfig, "HANDLER_REGISTER_FAILED", "could not register caller-supplied operation handlers", err)
	}

	transportMg := transportmgr.New()

	eng, err := engine.New(engine.Config{
		Self:      self,
		Registry:  registry,
		Transport: transportMg,
		Resolver:  cfg.Resolver,
		Verifier:  cfg.Verifier,
	})
	if err != nil {
		return nil, nodeerr.Wrap(nodeerr.KindConfig, "ENGINE_INIT_FAILED", "could not construct engine", err)
	}
	transportMg.OnInbound(eng.HandleMessage)

	actValidator := cfg.ActivityValidator
	if actValidator == nil {
		actValidator = validator.ShaclValidator{}
	}
	activities := activitymgr.New(activitymgr.Config{Validator: actValidator})
	for _, ex := range cfg.ActivityExecutors {
		activities.RegisterExecutor(ex)
	}

	providers := cfg.Providers
	if providers == nil {
		providers = transport.NewProviderRegistry()
	}

	return &Node{
		self:        self,
		cfg:         cfg.NodeConfig,
		registry:    registry,
		transportMg: transportMg,
		eng:         eng,
		activities:  activities,
		providers:   providers,
	}, nil
}

// Self returns the node's own DID.
func (n *Node) Self() did.DID { return n.self }

// Engine returns the dispatch core, for callers that need to register
// additional handlers or send messages directly (e.g. a REPL or test
// harness embedding a Node).
func (n *Node) Engine() *engine.Engine { return n.eng }

// Activities returns the Activity Manager.
func (n *Node) Activities() *activitymgr.Manager { return n.activities }

// Start brings up every configured transport instance, the metrics
// endpoint (if enabled), and tracing. It does not start the
// transport-config hot-reload watcher; WatchTransports does. It does not
// block; call Run (or wait on a signal yourself) to keep the process alive.
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started {
		return nodeerr.New(nodeerr.KindConfig, "NODE_ALREADY_STARTED", "node is already started")
	}

	if err := n.startTracing(ctx); err != nil {
		return err
	}
	if err := n.startMetrics(); err != nil {
		return err
	}
	if err := n.startTransports(ctx, n.cfg.Transports); err != nil {
		return err
	}
	if err := n.transportMg.Start(ctx); err != nil {
		return err
	}

	n.started = true
	logging.Info("node", "node %s started with %d transport file(s)", n.self.String(), len(n.cfg.Transports))
	return nil
}

// startTransports loads every transport record named in files through the
// provider registry, turning each enabled record into a live binding
// registered with the transport manager.
func (n *Node) startTransports(ctx context.Context, files []string) error {
	records, err := nodeconfig.LoadAllTransports(nodeconfig.NodeConfig{Transports: files})
	if err != nil {
		logging.Warn("node", "some transport config files failed to load: %v", err)
	}
	for _, rec := range records {
		if !rec.Enabled {
			continue
		}
		binding, err := n.providers.CreateInstance(ctx, rec.Type, rec.Name, rec.Config)
		if err != nil {
			return nodeerr.Wrap(nodeerr.KindTransport, "TRANSPORT_INSTANCE_FAILED",
				fmt.Sprintf("could not create transport instance %s (%s)", rec.Name, rec.Type), err)
		}
		n.transportMg.AddBinding(binding)
	}
	return nil
}

func (n *Node) startMetrics() error {
	if !n.cfg.Metrics.Enabled {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle(n.cfg.Metrics.Endpoint, metrics.Handler())
	addr := fmt.Sprintf(":%d", n.cfg.Metrics.Port)
	n.metricsSrv = &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := n.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("node", err, "metrics server exited")
		}
	}()
	logging.Info("node", "metrics listening on %s%s", addr, n.cfg.Metrics.Endpoint)
	return nil
}

func (n *Node) startTracing(ctx context.Context) error {
	shutdown, err := tracing.Init(ctx, tracing.Config{ServiceName: n.cfg.Name})
	if err != nil {
		return nodeerr.Wrap(nodeerr.KindConfig, "TRACING_INIT_FAILED", "could not initialize tracing", err)
	}
	n.tracingShutdown = shutdown
	return nil
}

// WatchTransports starts hot-reloading the directory containing the
// node's transport config files: any edited file is reloaded, and each
// enabled record with no existing instance gets a new binding, which is
// started. Instances that already exist are left unchanged (§6,
// SUPPLEMENTED FEATURES).
func (n *Node) WatchTransports(dir string) error {
	n.watcher = nodeconfig.NewWatcher(0)
	return n.watcher.Watch(dir, func(path string) {
		logging.Info("node", "reloading transport config %s", path)
		records, err := nodeconfig.LoadTransportFile(path)
		if err != nil {
			logging.Error("node", err, "failed to reload transport config %s", path)
			return
		}
		for _, rec := range records {
			if !rec.Enabled {
				continue
			}
			if _, ok := n.providers.GetInstance(rec.Type, rec.Name); ok {
				continue
			}
			binding, err := n.providers.CreateInstance(context.Background(), rec.Type, rec.Name, rec.Config)
			if err != nil {
				logging.Error("node", err, "failed to instantiate reloaded transport %s", rec.Name)
				continue
			}
			n.transportMg.AddBinding(binding)
			if err := binding.Start(context.Background()); err != nil {
				logging.Error("node", err, "failed to start reloaded transport %s", rec.Name)
			}
		}
	})
}

// Stop shuts every component down, making a best effort across all of
// them and collecting every error encountered rather than stopping at the
// first failure.
func (n *Node) Stop(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.started {
		return nil
	}

	var errs nodeerr.Errors

	if n.watcher != nil {
		n.watcher.Stop()
	}

	if err := n.transportMg.Stop(ctx); err != nil {
		errs.Add(nodeerr.Wrap(nodeerr.KindTransport, "TRANSPORT_STOP_FAILED", "transport manager shutdown failed", err))
	}
	if err := n.providers.Shutdown(ctx); err != nil {
		errs.Add(nodeerr.Wrap(nodeerr.KindTransport, "PROVIDERS_SHUTDOWN_FAILED", "provider registry shutdown failed", err))
	}
	if err := n.activities.Shutdown(ctx); err != nil {
		errs.Add(nodeerr.Wrap(nodeerr.KindConfig, "ACTIVITIES_SHUTDOWN_FAILED", "activity manager shutdown failed", err))
	}
	if n.metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := n.metricsSrv.Shutdown(shutdownCtx); err != nil {
			errs.Add(nodeerr.Wrap(nodeerr.KindConfig, "METRICS_SHUTDOWN_FAILED", "metrics server shutdown failed", err))
		}
	}
	if n.tracingShutdown != nil {
		if err := n.tracingShutdown(ctx); err != nil {
			errs.Add(nodeerr.Wrap(nodeerr.KindConfig, "TRACING_SHUTDOWN_FAILED", "tracing shutdown failed", err))
		}
	}

	n.started = false
	logging.Info("node", "node %s stopped", n.self.String())
	if errs.HasErrors() {
		return errs
	}
	return nil
}

// SendMessage is a convenience passthrough to the engine's Send for
// callers embedding a Node directly (tests, a REPL, an admin tool).
func (n *Node) SendMessage(ctx context.Context, msg hstp.Message) error {
	return n.eng.Send(ctx, msg)
}
