package mqttbind

import (
	"context"
	"sync"

	"github.com/hstp/node/internal/did"
	"github.com/hstp/node/internal/transport"
)

// Provider constructs mqttbind Binding instances (§4.5, §6).
type Provider struct {
	self did.DID

	mu        sync.Mutex
	instances map[string]*Binding
}

// NewProvider returns an mqttbind Provider. self is the node's own DID,
// used to derive each binding's direct inbound subscription topic.
func NewProvider(self did.DID) *Provider {
	return &Provider{self: self, instances: make(map[string]*Binding)}
}

func (p *Provider) Name() string { return "mqtt" }

func (p *Provider) SupportedProtocols() []transport.Protocol {
	return []transport.Protocol{transport.ProtocolMQTT, transport.ProtocolMQTTS}
}

// CreateInstances builds a single "default"-named instance from cfg.
func (p *Provider) CreateInstances(ctx context.Context, cfg map[string]any) ([]transport.Binding, error) {
	b, err := p.CreateInstance(ctx, "default", cfg)
	if err != nil {
		return nil, err
	}
	return []transport.Binding{b}, nil
}

// CreateInstance builds one named mqttbind instance from cfg's
// brokerUrl/clientId/username/password/topicPrefix/qos keys.
func (p *Provider) CreateInstance(ctx context.Context, name string, cfg map[string]any) (transport.Binding, error) {
	c, err := configFromMap(cfg)
	if err != nil {
		return nil, err
	}
	b := New(name, c, p.self)

	p.mu.Lock()
	p.instances[name] = b
	p.mu.Unlock()

	return b, nil
}
