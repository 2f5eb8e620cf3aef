// Package transport defines the Transport Binding Contract (§4.4): the
// interface every concrete wire binding (HTTP/WebSocket, MQTT, P2P) must
// satisfy so the transport manager can drive it uniformly, plus the
// protocol-tag vocabulary those bindings advertise themselves under.
package transport

import (
	"context"

	"github.com/hstp/node/internal/did"
	"github.com/hstp/node/internal/hstp"
)

// Protocol identifies a transport binding's wire protocol family (§4.4).
type Protocol string

const (
	ProtocolHTTP       Protocol = "http"
	ProtocolHTTPS      Protocol = "https"
	ProtocolWS         Protocol = "ws"
	ProtocolWSS        Protocol = "wss"
	ProtocolMQTT       Protocol = "mqtt"
	ProtocolMQTTS      Protocol = "mqtts"
	ProtocolP2P        Protocol = "p2p"
	ProtocolP2PCircuit Protocol = "p2p-circuit"
)

// IsSecure reports whether the protocol runs over TLS.
func (p Protocol) IsSecure() bool {
	switch p {
	case ProtocolHTTPS, ProtocolWSS, ProtocolMQTTS:
		return true
	default:
		return false
	}
}

// IsWebSocket reports whether the protocol is one of the WebSocket variants.
func (p Protocol) IsWebSocket() bool {
	return p == ProtocolWS || p == ProtocolWSS
}

// BaseProtocolOfWebSocket returns the non-WebSocket protocol ("http"/"https")
// underlying a WebSocket protocol tag, or p unchanged if it isn't one.
func BaseProtocolOfWebSocket(p Protocol) Protocol {
	switch p {
	case ProtocolWS:
		return ProtocolHTTP
	case ProtocolWSS:
		return ProtocolHTTPS
	default:
		return p
	}
}

// ReceiveFunc is invoked by a binding for every inbound message it decodes
// off the wire.
type ReceiveFunc func(ctx context.Context, msg hstp.Message) error

// Binding is the Transport Binding Contract (§4.4): the uniform surface the
// transport manager drives every concrete wire protocol through. A single
// binding instance owns one configured endpoint (e.g. one MQTT broker
// connection, one HTTP listener).
type Binding interface {
	// Protocol identifies which wire protocol this binding instance speaks.
	Protocol() Protocol

	// Start begins accepting/dialing connections. OnReceive must already
	// have been set before Start is called.
	Start(ctx context.Context) error
	// Stop gracefully shuts the binding down, releasing any held resources.
	Stop(ctx context.Context) error

	// Send delivers msg to its header's destination (point-to-point) or
	// channel (pub/sub), according to which the header carries.
	Send(ctx context.Context, msg hstp.Message) error

	// OnReceive registers the callback invoked for every inbound message.
	// Implementations must tolerate being called before Start.
	OnReceive(fn ReceiveFunc)

	// SupportsPointToPoint reports whether Send may target a Destination DID.
	SupportsPointToPoint() bool
	// SupportsPubSub reports whether Subscribe/Unsubscribe are usable.
	SupportsPubSub() bool

	// Subscribe begins delivering messages published to channel. Returns an
	// error if SupportsPubSub is false.
	Subscribe(ctx context.Context, channel did.DID) error
	// Unsubscribe stops delivering messages published to channel.
	Unsubscribe(ctx context.Context, channel did.DID) error
	// IsSubscribed reports whether channel currently has an active
	// subscription on this binding.
	IsSubscribed(channel did.DID) bool
}
