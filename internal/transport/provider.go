package transport

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hstp/node/internal/nodeerr"
)

// Provider constructs Binding instances for one or more protocols from a
// provider-specific configuration blob (§4.5). A provider might construct
// several bindings at once (e.g. one MQTT provider opening connections to
// several configured brokers).
type Provider interface {
	// Name identifies the provider for configuration and diagnostics.
	Name() string
	// SupportedProtocols lists every Protocol this provider can construct.
	SupportedProtocols() []Protocol

	// CreateInstances builds every binding instance described by cfg.
	CreateInstances(ctx context.Context, cfg map[string]any) ([]Binding, error)
	// CreateInstance builds a single named binding instance from cfg.
	CreateInstance(ctx context.Context, name string, cfg map[string]any) (Binding, error)
}

// ProviderRegistry is the Transport Provider Registry (§4.5): an explicit
// table from provider name to the Provider that constructs its bindings,
// plus the live set of instances each provider has created.
type ProviderRegistry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	instances map[string]map[string]Binding // provider name -> instance name -> Binding
}

// NewProviderRegistry returns an empty provider registry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]Provider),
		instances: make(map[string]map[string]Binding),
	}
}

// Register adds a provider under its own Name(). Duplicate names are
// rejected rather than silently overridden.
func (r *ProviderRegistry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if name == "" {
		return nodeerr.New(nodeerr.KindConfig, "EMPTY_PROVIDER_NAME", "provider returned an empty name")
	}
	if _, exists := r.providers[name]; exists {
		return nodeerr.New(nodeerr.KindConfig, "DUPLICATE_PROVIDER", fmt.Sprintf("transport provider %q already registered", name))
	}
	r.providers[name] = p
	r.instances[name] = make(map[string]Binding)
	return nil
}

// CreateInstance asks provider providerName to build a named binding
// instance from cfg, tracking it for later retrieval/shutdown.
func (r *ProviderRegistry) CreateInstance(ctx context.Context, providerName, instanceName string, cfg map[string]any) (Binding, error) {
	r.mu.Lock()
	p, ok := r.providers[providerName]
	r.mu.Unlock()
	if !ok {
		return nil, nodeerr.New(nodeerr.KindConfig, "UNKNOWN_PROVIDER", fmt.Sprintf("no transport provider registered as %q", providerName))
	}

	binding, err := p.CreateInstance(ctx, instanceName, cfg)
	if err != nil {
		return nil, nodeerr.Wrap(nodeerr.KindTransport, "CREATE_INSTANCE_FAILED",
			fmt.Sprintf("provider %q failed to create instance %q", providerName, instanceName), err)
	}

	r.mu.Lock()
	r.instances[providerName][instanceName] = binding
	r.mu.Unlock()
	return binding, nil
}

// GetInstance returns a previously created binding instance by provider and
// instance name.
func (r *ProviderRegistry) GetInstance(providerName, instanceName string) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byName, ok := r.instances[providerName]
	if !ok {
		return nil, false
	}
	b, ok := byName[instanceName]
	return b, ok
}

// GetAllInstances returns every binding instance created across every
// registered provider, in deterministic (provider, instance) name order.
func (r *ProviderRegistry) GetAllInstances() []Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providerNames := make([]string, 0, len(r.instances))
	for name := range r.instances {
		providerNames = append(providerNames, name)
	}
	sort.Strings(providerNames)

	var all []Binding
	for _, pname := range providerNames {
		instanceNames := make([]string, 0, len(r.instances[pname]))
		for iname := range r.instances[pname] {
			instanceNames = append(instanceNames, iname)
		}
		sort.Strings(instanceNames)
		for _, iname := range instanceNames {
			all = append(all, r.instances[pname][iname])
		}
	}
	return all
}

// Shutdown stops every tracked binding instance across every provider,
// collecting rather than stopping at the first error so one misbehaving
// binding doesn't prevent the rest from shutting down.
func (r *ProviderRegistry) Shutdown(ctx context.Context) error {
	var errs nodeerr.Errors
	for _, b := range r.GetAllInstances() {
		if err := b.Stop(ctx); err != nil {
			errs.Add(nodeerr.Wrap(nodeerr.KindTransport, "STOP_FAILED", "binding failed to stop cleanly", err))
		}
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}
