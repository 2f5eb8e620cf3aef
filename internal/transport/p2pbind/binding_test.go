package p2pbind

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hstp/node/internal/did"
	"github.com/hstp/node/internal/hstp"
)

func peerAddrInfo(t *testing.T, addr string) peer.AddrInfo {
	t.Helper()
	maddr, err := ma.NewMultiaddr(addr)
	require.NoError(t, err)
	info, err := peer.AddrInfoFromP2pAddr(maddr)
	require.NoError(t, err)
	return *info
}

// libp2p hosts talk entirely over loopback here, so these round trips run
// without any external broker or fixture, unlike mqttbind's live-broker test.

func TestDirectStreamRoundTrip(t *testing.T) {
	ctx := context.Background()

	receiver := New("receiver", Config{ListenAddrs: []string{"/ip4/127.0.0.1/tcp/0"}})
	require.NoError(t, receiver.Start(ctx))
	defer receiver.Stop(ctx)

	received := make(chan hstp.Message, 1)
	receiver.OnReceive(func(ctx context.Context, msg hstp.Message) error {
		received <- msg
		return nil
	})

	receiverAddr := fmt.Sprintf("%s/p2p/%s", receiver.host.Addrs()[0].String(), receiver.host.ID().String())

	alice := did.MustParse("did:example:alice")
	receiverDID := did.MustParse("did:example:receiver")

	sender := New("sender", Config{
		ListenAddrs: []string{"/ip4/127.0.0.1/tcp/0"},
		PeerAddrs:   map[string]string{receiverDID.String(): receiverAddr},
	})
	require.NoError(t, sender.Start(ctx))
	defer sender.Stop(ctx)

	msg := hstp.Message{
		Header:  hstp.NewHeader("hstp.ping", alice, hstp.WithDestination(receiverDID)),
		Payload: hstp.NewBytesPayload([]byte("hello")),
	}
	require.NoError(t, sender.Send(ctx, msg))

	select {
	case got := <-received:
		assert.Equal(t, "hstp.ping", got.Header.Operation)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for direct stream delivery")
	}
}

func TestChannelPublishRoundTrip(t *testing.T) {
	ctx := context.Background()

	a := New("a", Config{ListenAddrs: []string{"/ip4/127.0.0.1/tcp/0"}})
	require.NoError(t, a.Start(ctx))
	defer a.Stop(ctx)

	b := New("b", Config{ListenAddrs: []string{"/ip4/127.0.0.1/tcp/0"}})
	require.NoError(t, b.Start(ctx))
	defer b.Stop(ctx)

	bAddr := fmt.Sprintf("%s/p2p/%s", b.host.Addrs()[0].String(), b.host.ID().String())
	require.NoError(t, a.host.Connect(ctx, peerAddrInfo(t, bAddr)))

	channel := did.MustParse("did:example:room1")
	received := make(chan hstp.Message, 1)
	b.OnReceive(func(ctx context.Context, msg hstp.Message) error {
		received <- msg
		return nil
	})
	require.NoError(t, b.Subscribe(ctx, channel))
	require.NoError(t, a.Subscribe(ctx, channel))

	// gossipsub meshes take a moment to form after Subscribe.
	time.Sleep(500 * time.Millisecond)

	alice := did.MustParse("did:example:alice")
	msg := hstp.Message{
		Header:  hstp.NewHeader("hstp.ping", alice, hstp.WithChannel(channel)),
		Payload: hstp.NewBytesPayload([]byte("hello room")),
	}
	require.NoError(t, a.Send(ctx, msg))

	select {
	case got := <-received:
		assert.Equal(t, "hstp.ping", got.Header.Operation)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for gossipsub delivery")
	}

	require.NoError(t, a.Unsubscribe(ctx, channel))
	require.NoError(t, b.Unsubscribe(ctx, channel))
}

func TestSubscribeTwiceIsNoOp(t *testing.T) {
	ctx := context.Background()
	b := New("b", Config{ListenAddrs: []string{"/ip4/127.0.0.1/tcp/0"}})
	require.NoError(t, b.Start(ctx))
	defer b.Stop(ctx)

	channel := did.MustParse("did:example:room1")
	require.NoError(t, b.Subscribe(ctx, channel))
	assert.True(t, b.IsSubscribed(channel))

	// a second Subscribe must not error: go-libp2p-pubsub's Join rejects a
	// duplicate topic handle, so this only works if Subscribe short-circuits.
	require.NoError(t, b.Subscribe(ctx, channel))
	assert.True(t, b.IsSubscribed(channel))

	require.NoError(t, b.Unsubscribe(ctx, channel))
	assert.False(t, b.IsSubscribed(channel))
}

func TestSendWithoutTargetFails(t *testing.T) {
	ctx := context.Background()
	b := New("b", Config{ListenAddrs: []string{"/ip4/127.0.0.1/tcp/0"}})
	require.NoError(t, b.Start(ctx))
	defer b.Stop(ctx)

	alice := did.MustParse("did:example:alice")
	msg := hstp.Message{Header: hstp.NewHeader("hstp.ping", alice), Payload: hstp.EmptyPayload()}
	err := b.Send(ctx, msg)
	assert.Error(t, err)
}

func TestSendToUnknownPeerFails(t *testing.T) {
	ctx := context.Background()
	b := New("b", Config{ListenAddrs: []string{"/ip4/127.0.0.1/tcp/0"}})
	require.NoError(t, b.Start(ctx))
	defer b.Stop(ctx)

	alice := did.MustParse("did:example:alice")
	unknown := did.MustParse("did:example:nobody")
	msg := hstp.Message{
		Header:  hstp.NewHeader("hstp.ping", alice, hstp.WithDestination(unknown)),
		Payload: hstp.EmptyPayload(),
	}
	err := b.Send(ctx, msg)
	assert.Error(t, err)
}
