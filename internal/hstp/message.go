// Package hstp implements the Hypermedia Spatial Transport Protocol message
// model (§3): headers, messages, the single-consumer streaming payload, and
// the per-delivery MessageContext handlers observe.
package hstp

import (
	"time"

	"github.com/google/uuid"

	"github.com/hstp/node/internal/did"
)

const DefaultMediaType = "application/octet-stream"

// Header is the immutable-once-sent envelope of an HSTPMessage (§3).
type Header struct {
	ID             string
	Operation      string
	Source         did.DID
	Destination    did.DID // zero value if unset
	Channel        did.DID // zero value if unset
	InReplyTo      string
	Status         *int
	MediaType      string
	Timestamp      time.Time
	ExpectResponse bool
}

// HasDestination reports whether Destination is set.
func (h Header) HasDestination() bool { return !h.Destination.IsZero() }

// HasChannel reports whether Channel is set.
func (h Header) HasChannel() bool { return !h.Channel.IsZero() }

// IsReply reports whether this header identifies a reply to a prior message.
func (h Header) IsReply() bool { return h.InReplyTo != "" }

// NewID generates a collision-resistant message identifier, per §4.2's
// requirement for a 128-bit-random or equivalent scheme.
func NewID() string {
	return uuid.NewString()
}

// HeaderOption customizes a Header built by NewHeader.
type HeaderOption func(*Header)

// WithDestination sets the header's direct-message destination.
func WithDestination(d did.DID) HeaderOption {
	return func(h *Header) { h.Destination = d }
}

// WithChannel sets the header's pub/sub channel.
func WithChannel(c did.DID) HeaderOption {
	return func(h *Header) { h.Channel = c }
}

// WithInReplyTo marks the header as a reply to the given message id.
func WithInReplyTo(id string) HeaderOption {
	return func(h *Header) { h.InReplyTo = id }
}

// WithStatus sets the 3-digit HTTP-like reply status.
func WithStatus(status int) HeaderOption {
	return func(h *Header) { h.Status = &status }
}

// WithMediaType overrides the default media type.
func WithMediaType(mt string) HeaderOption {
	return func(h *Header) { h.MediaType = mt }
}

// WithExpectResponse marks the header as awaiting a reply.
func WithExpectResponse(v bool) HeaderOption {
	return func(h *Header) { h.ExpectResponse = v }
}

// NewHeader builds a Header with a freshly generated id, the given
// operation and source, and the current timestamp, applying opts in order.
func NewHeader(operation string, source did.DID, opts ...HeaderOption) Header {
	h := Header{
		ID:        NewID(),
		Operation: operation,
		Source:    source,
		MediaType: DefaultMediaType,
		Timestamp: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&h)
	}
	return h
}

// Message is a Header paired with its single-consumer streaming Payload.
type Message struct {
	Header  Header
	Payload *Payload
}
