package p2pbind

import (
	"context"
	"sync"

	"github.com/hstp/node/internal/transport"
)

// Provider constructs p2pbind Binding instances (§4.5, §6).
type Provider struct {
	mu        sync.Mutex
	instances map[string]*Binding
}

// NewProvider returns a p2pbind Provider.
func NewProvider() *Provider {
	return &Provider{instances: make(map[string]*Binding)}
}

func (p *Provider) Name() string { return "p2p" }

func (p *Provider) SupportedProtocols() []transport.Protocol {
	return []transport.Protocol{transport.ProtocolP2P, transport.ProtocolP2PCircuit}
}

// CreateInstances builds a single "default"-named instance from cfg.
func (p *Provider) CreateInstances(ctx context.Context, cfg map[string]any) ([]transport.Binding, error) {
	b, err := p.CreateInstance(ctx, "default", cfg)
	if err != nil {
		return nil, err
	}
	return []transport.Binding{b}, nil
}

// CreateInstance builds one named p2pbind instance from cfg's
// listenAddrs/peerAddrs keys.
func (p *Provider) CreateInstance(ctx context.Context, name string, cfg map[string]any) (transport.Binding, error) {
	c, err := configFromMap(cfg)
	if err != nil {
		return nil, err
	}
	b := New(name, c)

	p.mu.Lock()
	p.instances[name] = b
	p.mu.Unlock()

	return b, nil
}
