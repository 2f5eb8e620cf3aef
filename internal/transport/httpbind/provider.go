package httpbind

import (
	"context"
	"sync"

	"github.com/hstp/node/internal/transport"
)

// Provider constructs httpbind Binding instances (§4.5, §6).
type Provider struct {
	mu        sync.Mutex
	instances map[string]*Binding
}

// NewProvider returns an empty httpbind Provider.
func NewProvider() *Provider {
	return &Provider{instances: make(map[string]*Binding)}
}

func (p *Provider) Name() string { return "http" }

func (p *Provider) SupportedProtocols() []transport.Protocol {
	return []transport.Protocol{transport.ProtocolHTTP, transport.ProtocolHTTPS, transport.ProtocolWS, transport.ProtocolWSS}
}

// CreateInstances builds a single "default"-named instance from cfg, for
// callers that only ever run one HTTP binding.
func (p *Provider) CreateInstances(ctx context.Context, cfg map[string]any) ([]transport.Binding, error) {
	b, err := p.CreateInstance(ctx, "default", cfg)
	if err != nil {
		return nil, err
	}
	return []transport.Binding{b}, nil
}

// CreateInstance builds one named httpbind instance from cfg's
// listenAddr/remoteBaseUrl/tlsCertFile/tlsKeyFile keys.
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
