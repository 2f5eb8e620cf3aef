package transport

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hstp/node/internal/did"
	"github.com/hstp/node/internal/hstp"
)

// fakeBinding is an in-memory Binding used only by this package's tests.
type fakeBinding struct {
	mu      sync.Mutex
	proto   Protocol
	started bool
	onRecv  ReceiveFunc
	sent    []hstp.Message
}

func (f *fakeBinding) Protocol() Protocol { return f.proto }
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
func (f *fakeBinding) Send(ctx context.Context, msg hstp.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}
func (f *fakeBinding) OnReceive(fn ReceiveFunc)    { f.onRecv = fn }
func (f *fakeBinding) SupportsPointToPoint() bool  { return true }
func (f *fakeBinding) SupportsPubSub() bool        { return true }
func (f *fakeBinding) Subscribe(ctx context.Context, channel did.DID) error   { return nil }
func (f *fakeBinding) Unsubscribe(ctx context.Context, channel did.DID) error { return nil }
func (f *fakeBinding) IsSubscribed(channel did.DID) bool                      { return false }

type fakeProvider struct {
	name string
}

func (p *fakeProvider) Name() string                   { return p.name }
func (p *fakeProvider) SupportedProtocols() []Protocol { return []Protocol{ProtocolHTTP} }

func (p *fakeProvider) CreateInstances(ctx context.Context, cfg map[string]any) ([]Binding, error) {
	b, err := p.CreateInstance(ctx, "default", cfg)
	if err != nil {
		return nil, err
	}
	return []Binding{b}, nil
}

func (p *fakeProvider) CreateInstance(ctx context.Context, name string, cfg map[string]any) (Binding, error) {
	return &fakeBinding{proto: ProtocolHTTP}, nil
}

func TestProviderRegistryCreateAndLookup(t *testing.T) {
	r := NewProviderRegistry()
	require.NoError(t, r.Register(&fakeProvider{name: "http"}))

	b, err := r.CreateInstance(context.Background(), "http", "primary", nil)
	require.NoError(t, err)
	assert.Equal(t, ProtocolHTTP, b.Protocol())

	got, ok := r.GetInstance("http", "primary")
	require.True(t, ok)
	assert.Same(t, b, got)
}

func TestProviderRegistryUnknownProvider(t *testing.T) {
	r := NewProviderRegistry()
	_, err := r.CreateInstance(context.Background(), "missing", "x", nil)
	assert.Error(t, err)
}

func TestProviderRegistryDuplicateName(t *testing.T) {
	r := NewProviderRegistry()
	require.NoError(t, r.Register(&fakeProvider{name: "http"}))
	assert.Error(t, r.Register(&fakeProvider{name: "http"}))
}

func TestProviderRegistryShutdownStopsAll(t *testing.T) {
	r := NewProviderRegistry()
	require.NoError(t, r.Register(&fakeProvider{name: "http"}))
	b, err := r.CreateInstance(context.Background(), "http", "primary", nil)
	require.NoError(t, err)
	require.NoError(t, b.Start(context.Background()))

	require.NoError(t, r.Shutdown(context.Background()))
	assert.False(t, b.(*fakeBinding).started)
}

func TestProtocolHelpers(t *testing.T) {
	assert.True(t, ProtocolHTTPS.IsSecure())
	assert.False(t, ProtocolHTTP.IsSecure())
	assert.True(t, ProtocolWSS.IsWebSocket())
	assert.Equal(t, ProtocolHTTPS, BaseProtocolOfWebSocket(ProtocolWSS))
	assert.Equal(t, ProtocolMQTT, BaseProtocolOfWebSocket(ProtocolMQTT))
}
