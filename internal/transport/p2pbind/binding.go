package p2pbind

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/libp2p/go-libp2p"
	p2phost "github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/hstp/node/internal/did"
	"github.com/hstp/node/internal/hstp"
	"github.com/hstp/node/internal/nodeerr"
	"github.com/hstp/node/internal/transport"
	"github.com/hstp/node/internal/transport/wire"
	"github.com/hstp/node/pkg/logging"
)

type subscription struct {
	topic  *pubsub.Topic
	sub    *pubsub.Subscription
	cancel context.CancelFunc
}

// Binding is one configured libp2p host: direct streams for point-to-point
// delivery, gossipsub for channel delivery (§6).
type Binding struct {
	name string
	cfg  Config

	host p2phost.Host
	ps   *pubsub.PubSub

	peerAddrs map[string]peer.AddrInfo

	mu     sync.Mutex
	onRecv []transport.ReceiveFunc
	subs   map[string]*subscription // channel DID string -> subscription
}

// New constructs a Binding from cfg.
func New(name string, cfg Config) *Binding {
	return &Binding{name: name, cfg: cfg, subs: make(map[string]*subscription)}
}

// Protocol always reports p2p; this reference binding doesn't distinguish
// a relayed circuit address from a direct one at the Protocol level.
func (b *Binding) Protocol() transport.Protocol { return transport.ProtocolP2P }

// OnReceive registers a callback invoked for every inbound message.
// Multiple registrations accumulate; every one is invoked for each
// message delivered.
func (b *Binding) OnReceive(fn transport.ReceiveFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onRecv = append(b.onRecv, fn)
}

func (b *Binding) deliver(ctx context.Context, msg hstp.Message) {
	b.mu.Lock()
	fns := make([]transport.ReceiveFunc, len(b.onRecv))
	copy(fns, b.onRecv)
	b.mu.Unlock()
	if len(fns) == 0 {
		logging.Debug("p2pbind", "binding %s dropping inbound message, no receiver registered", b.name)
		return
	}
	for _, fn := range fns {
		if err := fn(ctx, msg); err != nil {
			logging.Error("p2pbind", err, "binding %s inbound handler failed", b.name)
		}
	}
}

// Start brings up the libp2p host, registers the direct-stream handler,
// starts gossipsub, and resolves configured peer addresses.
func (b *Binding) Start(ctx context.Context) error {
	h, err := libp2p.New(libp2p.ListenAddrStrings(b.cfg.ListenAddrs...))
	if err != nil {
		return nodeerr.Wrap(nodeerr.KindTransport, "P2PBIND_HOST_FAILED",
			fmt.Sprintf("binding %s could not construct libp2p host", b.name), err)
	}
	b.host = h
	b.host.SetStreamHandler(protocol.ID(ProtocolID), b.handleStream)

	ps, err := pubsub.NewGossipSub(ctx, b.host)
	if err != nil {
		return nodeerr.Wrap(nodeerr.KindTransport, "P2PBIND_PUBSUB_FAILED",
			fmt.Sprintf("binding %s could not start gossipsub", b.name), err)
	}
	b.ps = ps

	peerAddrs := make(map[string]peer.AddrInfo, len(b.cfg.PeerAddrs))
	for didStr, addrStr := range b.cfg.PeerAddrs {
		maddr, err := ma.NewMultiaddr(addrStr)
		if err != nil {
			return nodeerr.Wrap(nodeerr.KindConfig, "P2PBIND_PEER_ADDR_INVALID",
				fmt.Sprintf("peer address for %s is not a valid multiaddr", didStr), err)
		}
		info, err := peer.AddrInfoFromP2pAddr(maddr)
		if err != nil {
			return nodeerr.Wrap(nodeerr.KindConfig, "P2PBIND_PEER_ADDR_INVALID",
				fmt.Sprintf("peer address for %s is missing a /p2p/<id> suffix", didStr), err)
		}
		peerAddrs[didStr] = *info
	}
	b.peerAddrs = peerAddrs

	logging.Info("p2pbind", "binding %s listening on %v, peer id %s", b.name, b.host.Addrs(), b.host.ID())
	return nil
}

func (b *Binding) handleStream(s network.Stream) {
	defer s.Close()
	data, err := io.ReadAll(s)
	if err != nil {
		logging.Warn("p2pbind", "binding %s failed to read inbound stream: %v", b.name, err)
		return
	}
	msg, err := wire.Decode(data)
	if err != nil {
		logging.Warn("p2pbind", "binding %s dropping malformed stream payload: %v", b.name, err)
		return
	}
	b.deliver(context.Background(), msg)
}

// Stop closes every open subscription's topic and the host itself.
func (b *Binding) Stop(ctx context.Context) error {
	b.mu.Lock()
	for _, s := range b.subs {
		s.cancel()
		s.sub.Cancel()
		_ = s.topic.Close()
	}
	b.subs = make(map[string]*subscription)
	b.mu.Unlock()

	if b.host == nil {
		return nil
	}
	if err := b.host.Close(); err != nil {
		return nodeerr.Wrap(nodeerr.KindTransport, "P2PBIND_HOST_CLOSE_FAILED",
			fmt.Sprintf("binding %s failed to close host", b.name), err)
	}
	return nil
}

// Send opens a direct stream to msg's destination peer, or publishes to
// its channel's gossipsub topic (§6).
func (b *Binding) Send(ctx context.Context, msg hstp.Message) error {
	if msg.Header.HasChannel() {
		return b.publishToChannel(ctx, msg)
	}
	if msg.Header.HasDestination() {
		return b.sendDirect(ctx, msg)
	}
	return nodeerr.New(nodeerr.KindTransport, "P2PBIND_NO_TARGET", "message has neither a channel nor a destination")
}

func (b *Binding) sendDirect(ctx context.Context, msg hstp.Message) error {
	info, ok := b.peerAddrs[msg.Header.Destination.String()]
	if !ok {
		return nodeerr.New(nodeerr.KindTransport, "P2PBIND_UNKNOWN_PEER",
			fmt.Sprintf("no known peer address for %s", msg.Header.Destination.String()))
	}

	if err := b.host.Connect(ctx, info); err != nil {
		return nodeerr.Wrap(nodeerr.KindTransport, "P2PBIND_CONNECT_FAILED",
			fmt.Sprintf("binding %s could not connect to peer %s", b.name, info.ID), err)
	}

	s, err := b.host.NewStream(ctx, info.ID, protocol.ID(ProtocolID))
	if err != nil {
		return nodeerr.Wrap(nodeerr.KindTransport, "P2PBIND_STREAM_FAILED",
			fmt.Sprintf("binding %s could not open stream to peer %s", b.name, info.ID), err)
	}
	defer s.Close()

	body, err := wire.Encode(msg)
	if err != nil {
		return err
	}
	if _, err := s.Write(body); err != nil {
		return nodeerr.Wrap(nodeerr.KindTransport, "P2PBIND_WRITE_FAILED",
			fmt.Sprintf("binding %s failed to write to peer %s", b.name, info.ID), err)
	}
	return s.CloseWrite()
}

func (b *Binding) publishToChannel(ctx context.Context, msg hstp.Message) error {
	topic, err := b.ps.Join(msg.Header.Channel.String())
	if err != nil {
		return nodeerr.Wrap(nodeerr.KindTransport, "P2PBIND_JOIN_FAILED",
			fmt.Sprintf("binding %s could not join topic %s", b.name, msg.Header.Channel.String()), err)
	}
	body, err := wire.Encode(msg)
	if err != nil {
		return err
	}
	if err := topic.Publish(ctx, body); err != nil {
		return nodeerr.Wrap(nodeerr.KindTransport, "P2PBIND_PUBLISH_FAILED",
			fmt.Sprintf("binding %s could not publish to topic %s", b.name, msg.Header.Channel.String()), err)
	}
	return nil
}

// SupportsPointToPoint is always true.
func (b *Binding) SupportsPointToPoint() bool { return true }

// SupportsPubSub is always true.
func (b *Binding) SupportsPubSub() bool { return true }

// Subscribe joins channel's gossipsub topic and starts delivering every
// message published to it. Subscribing twice to the same channel is a
// no-op: go-libp2p-pubsub's Join errors on a topic handle that already
// exists, so a repeat call must short-circuit before reaching it.
func (b *Binding) Subscribe(ctx context.Context, channel did.DID) error {
	b.mu.Lock()
	_, already := b.subs[channel.String()]
	b.mu.Unlock()
	if already {
		return nil
	}

	topic, err := b.ps.Join(channel.String())
	if err != nil {
		return nodeerr.Wrap(nodeerr.KindTransport, "P2PBIND_JOIN_FAILED",
			fmt.Sprintf("binding %s could not join topic %s", b.name, channel.String()), err)
	}
	sub, err := topic.Subscribe()
	if err != nil {
		_ = topic.Close()
		return nodeerr.Wrap(nodeerr.KindTransport, "P2PBIND_SUBSCRIBE_FAILED",
			fmt.Sprintf("binding %s could not subscribe to topic %s", b.name, channel.String()), err)
	}

	subCtx, cancel := context.WithCancel(context.Background())
	b.mu.Lock()
	b.subs[channel.String()] = &subscription{topic: topic, sub: sub, cancel: cancel}
	b.mu.Unlock()

	go b.readChannel(subCtx, sub)
	return nil
}

func (b *Binding) readChannel(ctx context.Context, sub *pubsub.Subscription) {
	for {
		m, err := sub.Next(ctx)
		if err != nil {
			return
		}
		msg, err := wire.Decode(m.Data)
		if err != nil {
			logging.Warn("p2pbind", "binding %s dropping malformed gossipsub message: %v", b.name, err)
			continue
		}
		b.deliver(ctx, msg)
	}
}

// Unsubscribe cancels channel's subscription and leaves its topic.
func (b *Binding) Unsubscribe(ctx context.Context, channel did.DID) error {
	b.mu.Lock()
	s, ok := b.subs[channel.String()]
	delete(b.subs, channel.String())
	b.mu.Unlock()
	if !ok {
		return nil
	}
	s.cancel()
	s.sub.Cancel()
	return s.topic.Close()
}

// IsSubscribed reports whether channel currently has an active gossipsub
// subscription on this binding.
func (b *Binding) IsSubscribed(channel did.DID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.subs[channel.String()]
	return ok
}
