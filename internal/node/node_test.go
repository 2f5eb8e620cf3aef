package node

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hstp/node/internal/did"
	"github.com/hstp/node/internal/hstp"
	"github.com/hstp/node/internal/nodeconfig"
	"github.com/hstp/node/internal/transport"
)

type fakeBinding struct {
	mu      sync.Mutex
	started bool
}

func (f *fakeBinding) Protocol() transport.Protocol { return transport.ProtocolHTTP }
func (f *fakeBinding) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	return nil
}
func (f *fakeBinding) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = false
	return nil
}
func (f *fakeBinding) Send(ctx context.Context, msg hstp.Message) error { return nil }
func (f *fakeBinding) OnReceive(fn transport.ReceiveFunc)               {}
func (f *fakeBinding) SupportsPointToPoint() bool                       { return true }
func (f *fakeBinding) SupportsPubSub() bool                             { return false }
func (f *fakeBinding) Subscribe(ctx context.Context, channel did.DID) error {
	return nil
}
func (f *fakeBinding) Unsubscribe(ctx context.Context, channel did.DID) error {
	return nil
}
func (f *fakeBinding) IsSubscribed(channel did.DID) bool { return false }

type fakeProvider struct {
	name     string
	bindings []*fakeBinding
}

func (p *fakeProvider) Name() string                           { return p.name }
func (p *fakeProvider) SupportedProtocols() []transport.Protocol { return []transport.Protocol{transport.ProtocolHTTP} }
func (p *fakeProvider) CreateInstances(ctx context.Context, cfg map[string]any) ([]transport.Binding, error) {
	b, err := p.CreateInstance(ctx, "default", cfg)
	if err != nil {
		return nil, err
	}
	return []transport.Binding{b}, nil
}
func (p *fakeProvider) CreateInstance(ctx context.Context, name string, cfg map[string]any) (transport.Binding, error) {
	b := &fakeBinding{}
	p.bindings = append(p.bindings, b)
	return b, nil
}

func testConfig(t *testing.T, transportFiles []string) Config {
	t.Helper()
	registry := transport.NewProviderRegistry()
	require.NoError(t, registry.Register(&fakeProvider{name: "http"}))

	return Config{
		NodeConfig: nodeconfig.NodeConfig{
			NodeID:     "did:example:node1",
			Name:       "test-node",
			Transports: transportFiles,
		},
		Providers: registry,
	}
}

func TestNewRejectsMalformedNodeID(t *testing.T) {
	cfg := testConfig(t, nil)
	cfg.NodeConfig.NodeID = "not-a-did"
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestNewWiresBuiltinPingPongHandlers(t *testing.T) {
	n, err := New(testConfig(t, nil))
	require.NoError(t, err)
	assert.Contains(t, n.registry.Operations(), "ping")
	assert.Contains(t, n.registry.Operations(), "pong")
}

func TestStartLoadsTransportsFromConfig(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/transports.yaml"
	require.NoError(t, writeTransportFile(path, `
transports:
  - name: primary
    type: http
    enabled: true
`))

	n, err := New(testConfig(t, []string{path}))
	require.NoError(t, err)

	require.NoError(t, n.Start(context.Background()))
	defer n.Stop(context.Background())

	provider := n.providers
	b, ok := provider.GetInstance("http", "primary")
	require.True(t, ok)
	assert.True(t, b.(*fakeBinding).started)
}

func TestStartTwiceFails(t *testing.T) {
	n, err := New(testConfig(t, nil))
	require.NoError(t, err)
	require.NoError(t, n.Start(context.Background()))
	defer n.Stop(context.Background())

	assert.Error(t, n.Start(context.Background()))
}

func TestStopIsIdempotentBeforeStart(t *testing.T) {
	n, err := New(testConfig(t, nil))
	require.NoError(t, err)
	assert.NoError(t, n.Stop(context.Background()))
}

func TestSendMessageDeliversThroughEngine(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/transports.yaml"
	require.NoError(t, writeTransportFile(path, `
transports:
  - name: primary
    type: http
    enabled: true
`))

	n, err := New(testConfig(t, []string{path}))
	require.NoError(t, err)
	require.NoError(t, n.Start(context.Background()))
	defer n.Stop(context.Background())

	dest := did.MustParse("did:example:peer")
	msg := hstp.Message{
		Header:  hstp.NewHeader("hstp.ping", n.Self(), hstp.WithDestination(dest)),
		Payload: hstp.EmptyPayload(),
	}
	assert.NoError(t, n.SendMessage(context.Background(), msg))
}

func writeTransportFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
