// Package pingpong implements the ping/pong reference operations shipped
// with the core (§4.7): a liveness/round-trip-time probe built entirely on
// the public operation and engine contracts, with no special-cased engine
// support.
package pingpong

import (
	"context"
	"time"

	"github.com/hstp/node/internal/did"
	"github.com/hstp/node/internal/hstp"
	"github.com/hstp/node/internal/operation"
)

const (
	OperationPing = "ping"
	OperationPong = "pong"
)

// PingHandler answers "ping" messages. A direct ping with expectResponse
// set gets a "pong" reply carrying an identical payload; a channel ping
// gets no automatic reply (§4.7).
type PingHandler struct{}

func (PingHandler) Operation() string { return OperationPing }

func (PingHandler) Handle(ctx context.Context, mc *hstp.MessageContext) (*hstp.Message, error) {
	h := mc.Message.Header
	if h.HasChannel() || !h.ExpectResponse {
		return nil, nil
	}

	payload, err := mc.Message.Payload.Drain()
	if err != nil {
		payload = nil
	}

	status := 200
	reply := &hstp.Message{
		Header: hstp.NewHeader(OperationPong, replySource(h),
			hstp.WithDestination(h.Source),
			hstp.WithInReplyTo(h.ID),
			hstp.WithStatus(status),
		),
		Payload: hstp.NewBytesPayload(payload),
	}
	return reply, nil
}

// PongHandler answers "pong" messages by letting the engine's correlation
// table match them against a waiting ping (§4.7: the engine itself
// performs inReplyTo correlation before an operation handler is even
// consulted — this handler exists so pongs that outlive their correlation
// window are still accounted for instead of silently falling through the
// registry as unknown).
type PongHandler struct{}

func (PongHandler) Operation() string { return OperationPong }

func (PongHandler) Handle(ctx context.Context, mc *hstp.MessageContext) (*hstp.Message, error) {
	// By the time an uncorrelated pong reaches here the engine already
	// tried and failed to match it to a waiter; nothing left to do but
	// acknowledge receipt without generating further traffic.
	return nil, nil
}

func replySource(h hstp.Header) did.DID {
	if h.HasDestination() {
		return h.Destination
	}
	return h.Source
}

// NewDirectPing builds a point-to-point ping header from source to dest,
// expecting a response.
func NewDirectPing(source, dest did.DID) hstp.Header {
	return hstp.NewHeader(OperationPing, source, hstp.WithDestination(dest), hstp.WithExpectResponse(true))
}

// NewChannelPing builds a pub/sub ping header published to channel. No
// reply is expected automatically; recipients opt in individually.
func NewChannelPing(source, channel did.DID) hstp.Header {
	return hstp.NewHeader(OperationPing, source, hstp.WithChannel(channel))
}

// RoundTripTime computes pong.Timestamp - ping.Timestamp (§4.7).
func RoundTripTime(ping, pong hstp.Header) time.Duration {
	return pong.Timestamp.Sub(ping.Timestamp)
}

// IsPongFor reports whether pong answers ping: its operation is "pong" and
// its InReplyTo matches ping's id (§4.7).
func IsPongFor(pong, ping hstp.Header) bool {
	return pong.Operation == OperationPong && pong.InReplyTo == ping.ID
}

// Handlers returns both reference handlers, ready to register on an
// operation.Registry.
func Handlers() []operation.Handler {
	return []operation.Handler{PingHandler{}, PongHandler{}}
}
