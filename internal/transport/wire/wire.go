// Package wire implements the HSTP wire JSON encoding shared by every
// reference transport binding (httpbind, mqttbind, p2pbind). The schema
// the original source left unspecified is fixed here: a header's fields
// flattened alongside a base64 "payload" blob, since chunking is an
// in-process streaming concern the wire format doesn't carry (§3, §9).
package wire

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hstp/node/internal/did"
	"github.com/hstp/node/internal/hstp"
)

// envelope is the on-the-wire JSON shape of one HSTPMessage.
type envelope struct {
	ID             string    `json:"id"`
	Operation      string    `json:"operation"`
	Source         string    `json:"source"`
	Destination    string    `json:"destination,omitempty"`
	Channel        string    `json:"channel,omitempty"`
	InReplyTo      string    `json:"inReplyTo,omitempty"`
	Status         *int      `json:"status,omitempty"`
	MediaType      string    `json:"mediaType"`
	Timestamp      time.Time `json:"timestamp"`
	ExpectResponse bool      `json:"expectResponse"`
	Payload        []byte    `json:"payload"` // encoding/json base64-encodes []byte
}

// Encode drains msg's payload and renders the whole message as wire JSON.
// Draining is terminal: call Encode exactly once per outbound message,
// consistent with Payload's single-consumer contract (§3).
func Encode(msg hstp.Message) ([]byte, error) {
	body, err := msg.Payload.Drain()
	if err != nil {
		return nil, fmt.Errorf("wire: draining payload for message %s: %w", msg.Header.ID, err)
	}

	e := envelope{
		ID:             msg.Header.ID,
		Operation:      msg.Header.Operation,
		Source:         msg.Header.Source.String(),
		InReplyTo:      msg.Header.InReplyTo,
		Status:         msg.Header.Status,
		MediaType:      msg.Header.MediaType,
		Timestamp:      msg.Header.Timestamp,
		ExpectResponse: msg.Header.ExpectResponse,
		Payload:        body,
	}
	if msg.Header.HasDestination() {
		e.Destination = msg.Header.Destination.String()
	}
	if msg.Header.HasChannel() {
		e.Channel = msg.Header.Channel.String()
	}

	return json.Marshal(e)
}

// Decode parses wire JSON back into an hstp.Message with an in-memory
// bytes Payload.
func Decode(data []byte) (hstp.Message, error) {
	var e envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return hstp.Message{}, fmt.Errorf("wire: decoding message: %w", err)
	}

	source, err := did.Parse(e.Source)
	if err != nil {
		return hstp.Message{}, fmt.Errorf("wire: message %s has malformed source: %w", e.ID, err)
	}

	h := hstp.Header{
		ID:             e.ID,
		Operation:      e.Operation,
		Source:         source,
		InReplyTo:      e.InReplyTo,
		Status:         e.Status,
		MediaType:      e.MediaType,
		Timestamp:      e.Timestamp,
		ExpectResponse: e.ExpectResponse,
	}
	if e.Destination != "" {
		dest, err := did.Parse(e.Destination)
		if err != nil {
			return hstp.Message{}, fmt.Errorf("wire: message %s has malformed destination: %w", e.ID, err)
		}
		h.Destination = dest
	}
	if e.Channel != "" {
		channel, err := did.Parse(e.Channel)
		if err != nil {
			return hstp.Message{}, fmt.Errorf("wire: message %s has malformed channel: %w", e.ID, err)
		}
		h.Channel = channel
	}

	return hstp.Message{Header: h, Payload: hstp.NewBytesPayload(e.Payload)}, nil
}
