package mqttbind

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/hstp/node/internal/did"
	"github.com/hstp/node/internal/hstp"
	"github.com/hstp/node/internal/nodeerr"
	"github.com/hstp/node/internal/transport"
	"github.com/hstp/node/internal/transport/wire"
	"github.com/hstp/node/pkg/logging"
)

// DefaultConnectTimeout bounds how long Start waits for the broker
// handshake to complete.
const DefaultConnectTimeout = 10 * time.Second

// DefaultDisconnectQuiesce is how long Stop gives the client to flush
// in-flight publishes before forcing the connection closed.
const DefaultDisconnectQuiesce = uint(250) // milliseconds, paho's own unit

// Binding is one configured MQTT broker connection.
type Binding struct {
	name string
	cfg  Config
	self did.DID

	client mqtt.Client

	mu     sync.Mutex
	onRecv []transport.ReceiveFunc
	subs   map[string]struct{}
}

// New constructs a Binding. self identifies this node for the direct
// inbound subscription topic.
func New(name string, cfg Config, self did.DID) *Binding {
	return &Binding{name: name, cfg: cfg, self: self, subs: make(map[string]struct{})}
}

// Protocol reports mqtts for a tls://ssl:// broker URL, mqtt otherwise.
func (b *Binding) Protocol() transport.Protocol {
	if strings.HasPrefix(b.cfg.BrokerURL, "ssl://") || strings.HasPrefix(b.cfg.BrokerURL, "tls://") {
		return transport.ProtocolMQTTS
	}
	return transport.ProtocolMQTT
}

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
		logging.Debug("mqttbind", "binding %s dropping inbound message, no receiver registered", b.name)
		return
	}
	for _, fn := range fns {
		if err := fn(ctx, msg); err != nil {
			logging.Error("mqttbind", err, "binding %s inbound handler failed", b.name)
		}
	}
}

func (b *Binding) handleMessage(_ mqtt.Client, m mqtt.Message) {
	msg, err := wire.Decode(m.Payload())
	if err != nil {
		logging.Warn("mqttbind", "binding %s dropping malformed message on topic %s: %v", b.name, m.Topic(), err)
		return
	}
	b.deliver(context.Background(), msg)
}

// Start connects to the broker and subscribes to this node's direct
// inbound topic.
func (b *Binding) Start(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(b.cfg.BrokerURL).
		SetClientID(clientID(b.cfg, b.self)).
		SetAutoReconnect(true).
		SetConnectTimeout(DefaultConnectTimeout)
	if b.cfg.Username != "" {
		opts.SetUsername(b.cfg.Username)
		opts.SetPassword(b.cfg.Password)
	}

	b.client = mqtt.NewClient(opts)
	if token := b.client.Connect(); !token.WaitTimeout(DefaultConnectTimeout) || token.Error() != nil {
		return nodeerr.Wrap(nodeerr.KindTransport, "MQTTBIND_CONNECT_FAILED",
			fmt.Sprintf("binding %s could not connect to %s", b.name, b.cfg.BrokerURL), token.Error())
	}

	topic := directSubscriptionFilter(b.cfg.TopicPrefix, b.self)
	if token := b.client.Subscribe(topic, b.cfg.QoS, b.handleMessage); !token.WaitTimeout(DefaultConnectTimeout) || token.Error() != nil {
		return nodeerr.Wrap(nodeerr.KindTransport, "MQTTBIND_SUBSCRIBE_FAILED",
			fmt.Sprintf("binding %s could not subscribe to %s", b.name, topic), token.Error())
	}

	logging.Info("mqttbind", "binding %s connected to %s, subscribed to %s", b.name, b.cfg.BrokerURL, topic)
	return nil
}

// Stop disconnects from the broker.
func (b *Binding) Stop(ctx context.Context) error {
	if b.client != nil && b.client.IsConnected() {
		b.client.Disconnect(DefaultDisconnectQuiesce)
	}
	return nil
}

// Send publishes msg to its channel topic if it has one, otherwise to its
// destination's direct topic (§6).
func (b *Binding) Send(ctx context.Context, msg hstp.Message) error {
	if b.client == nil {
		return nodeerr.New(nodeerr.KindTransport, "MQTTBIND_NOT_STARTED", "binding has not been started")
	}

	var topic string
	switch {
	case msg.Header.HasChannel():
		topic = channelTopic(b.cfg.TopicPrefix, msg.Header.Channel)
	case msg.Header.HasDestination():
		topic = directTopic(b.cfg.TopicPrefix, msg.Header.Destination)
	default:
		return nodeerr.New(nodeerr.KindTransport, "MQTTBIND_NO_TARGET", "message has neither a channel nor a destination")
	}

	body, err := wire.Encode(msg)
	if err != nil {
		return err
	}

	token := b.client.Publish(topic, b.cfg.QoS, false, body)
	if !token.WaitTimeout(DefaultConnectTimeout) || token.Error() != nil {
		return nodeerr.Wrap(nodeerr.KindTransport, "MQTTBIND_PUBLISH_FAILED",
			fmt.Sprintf("binding %s failed to publish to %s", b.name, topic), token.Error())
	}
	return nil
}

// SupportsPointToPoint is always true.
func (b *Binding) SupportsPointToPoint() bool { return true }

// SupportsPubSub is always true.
func (b *Binding) SupportsPubSub() bool { return true }

// Subscribe subscribes to channel's topic. Subscribing twice to the same
// channel is a no-op.
func (b *Binding) Subscribe(ctx context.Context, channel did.DID) error {
	if b.client == nil {
		return nodeerr.New(nodeerr.KindTransport, "MQTTBIND_NOT_STARTED", "binding has not been started")
	}

	b.mu.Lock()
	if _, ok := b.subs[channel.String()]; ok {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	topic := channelTopic(b.cfg.TopicPrefix, channel)
	token := b.client.Subscribe(topic, b.cfg.QoS, b.handleMessage)
	if !token.WaitTimeout(DefaultConnectTimeout) || token.Error() != nil {
		return nodeerr.Wrap(nodeerr.KindTransport, "MQTTBIND_SUBSCRIBE_FAILED",
			fmt.Sprintf("binding %s could not subscribe to %s", b.name, topic), token.Error())
	}

	b.mu.Lock()
	b.subs[channel.String()] = struct{}{}
	b.mu.Unlock()
	return nil
}

// Unsubscribe unsubscribes from channel's topic.
func (b *Binding) Unsubscribe(ctx context.Context, channel did.DID) error {
	if b.client == nil {
		return nodeerr.New(nodeerr.KindTransport, "MQTTBIND_NOT_STARTED", "binding has not been started")
	}
	topic := channelTopic(b.cfg.TopicPrefix, channel)
	token := b.client.Unsubscribe(topic)
	if !token.WaitTimeout(DefaultConnectTimeout) || token.Error() != nil {
		return nodeerr.Wrap(nodeerr.KindTransport, "MQTTBIND_UNSUBSCRIBE_FAILED",
			fmt.Sprintf("binding %s could not unsubscribe from %s", b.name, topic), token.Error())
	}

	b.mu.Lock()
	delete(b.subs, channel.String())
	b.mu.Unlock()
	return nil
}

// IsSubscribed reports whether channel currently has an active
// subscription on this binding.
func (b *Binding) IsSubscribed(channel did.DID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.subs[channel.String()]
	return ok
}

func clientID(cfg Config, self did.DID) string {
	if cfg.ClientID != "" {
		return cfg.ClientID
	}
	return "hstp-" + self.SafeToken()
}
