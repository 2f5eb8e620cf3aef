package transportmgr

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hstp/node/internal/did"
	"github.com/hstp/node/internal/hstp"
	"github.com/hstp/node/internal/transport"
)

type recordingBinding struct {
	mu         sync.Mutex
	proto      transport.Protocol
	p2p        bool
	pubsub     bool
	onRecv     transport.ReceiveFunc
	sent       []hstp.Message
	subscribed []did.DID
}

func (b *recordingBinding) Protocol() transport.Protocol    { return b.proto }
func (b *recordingBinding) Start(ctx context.Context) error { return nil }
func (b *recordingBinding) Stop(ctx context.Context) error  { return nil }
func (b *recordingBinding) Send(ctx context.Context, msg hstp.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, msg)
	return nil
}
func (b *recordingBinding) OnReceive(fn transport.ReceiveFunc) { b.onRecv = fn }
func (b *recordingBinding) SupportsPointToPoint() bool         { return b.p2p }
func (b *recordingBinding) SupportsPubSub() bool               { return b.pubsub }
func (b *recordingBinding) Subscribe(ctx context.Context, channel did.DID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribed = append(b.subscribed, channel)
	return nil
}
func (b *recordingBinding) Unsubscribe(ctx context.Context, channel did.DID) error { return nil }
func (b *recordingBinding) IsSubscribed(channel did.DID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.subscribed {
		if c.Equal(channel) {
			return true
		}
	}
	return false
}

func alice() did.DID { return did.MustParse("did:example:alice") }
func bob() did.DID   { return did.MustParse("did:example:bob") }

func directMsg() hstp.Message {
	return hstp.Message{Header: hstp.NewHeader("ping", alice(), hstp.WithDestination(bob()))}
}

func TestSendRoutesToPointToPointBinding(t *testing.T) {
	m := New()

	direct := &recordingBinding{proto: transport.ProtocolHTTP, p2p: true}
	pubsub := &recordingBinding{proto: transport.ProtocolMQTT, pubsub: true}
	m.AddBinding(direct)
	m.AddBinding(pubsub)

	require.NoError(t, m.Send(context.Background(), directMsg()))
	assert.Len(t, direct.sent, 1)
	assert.Empty(t, pubsub.sent)
}

func TestSendNoCapableBinding(t *testing.T) {
	m := New()
	m.AddBinding(&recordingBinding{proto: transport.ProtocolMQTT, pubsub: true})

	err := m.Send(context.Background(), directMsg())
	assert.Error(t, err)
}

func TestInboundForwardsToRegisteredHandler(t *testing.T) {
	m := New()

	var received int
	m.OnInbound(func(ctx context.Context, msg hstp.Message) error {
		received++
		return nil
	})

	b := &recordingBinding{proto: transport.ProtocolHTTP, p2p: true}
	m.AddBinding(b)

	require.NoError(t, b.onRecv(context.Background(), directMsg()))
	assert.Equal(t, 1, received)
}

func TestInboundWithNoHandlerIsANoop(t *testing.T) {
	m := New()
	b := &recordingBinding{proto: transport.ProtocolHTTP, p2p: true}
	m.AddBinding(b)

	assert.NoError(t, b.onRecv(context.Background(), directMsg()))
}

func TestSubscribeFansOutToPubSubBindingsOnly(t *testing.T) {
	m := New()

	direct := &recordingBinding{proto: transport.ProtocolHTTP, p2p: true}
	pubsub := &recordingBinding{proto: transport.ProtocolMQTT, pubsub: true}
	m.AddBinding(direct)
	m.AddBinding(pubsub)

	ch := did.MustParse("did:example:room1")
	require.NoError(t, m.Subscribe(context.Background(), ch))

	assert.Empty(t, direct.subscribed)
	require.Len(t, pubsub.subscribed, 1)
	assert.True(t, pubsub.subscribed[0].Equal(ch))
}
