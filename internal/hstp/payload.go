package hstp

import (
	"sync"

	"github.com/hstp/node/internal/nodeerr"
)

// ChunkSource supplies the next chunk of a streamed payload. Implementations
// come from a transport binding (a WebSocket frame reader, an MQTT message
// body, an HTTP request body reader); the core never interprets chunk
// boundaries beyond concatenation order.
type ChunkSource interface {
	Next() (chunk []byte, eof bool, err error)
	Close() error
}

// staticChunks is a ChunkSource over an already-materialized byte slice,
// used when a payload is constructed in-process (e.g. a ping reply) rather
// than streamed in off the wire.
type staticChunks struct {
	data []byte
	done bool
}

func (s *staticChunks) Next() ([]byte, bool, error) {
	if s.done {
		return nil, true, nil
	}
	s.done = true
	return s.data, true, nil
}

func (s *staticChunks) Close() error { return nil }

// Payload is a lazy, single-consumer sequence of byte chunks (§3, §9 Design
// Notes: "a cursor object with Next() -> (chunk, eof) and Close() suffices").
// Once fully drained or explicitly closed it cannot be read again; a second
// consumption attempt returns nodeerr.ErrPayloadConsumed (testable property
// 5, §8).
type Payload struct {
	mu       sync.Mutex
	source   ChunkSource
	consumed bool
}

// NewPayload wraps a ChunkSource as a Payload.
func NewPayload(source ChunkSource) *Payload {
	return &Payload{source: source}
}

// NewBytesPayload builds a Payload that yields data as a single chunk.
func NewBytesPayload(data []byte) *Payload {
	return NewPayload(&staticChunks{data: data})
}

// EmptyPayload returns a Payload that yields no chunks.
func EmptyPayload() *Payload {
	return NewBytesPayload(nil)
}

// Next returns the next chunk, or eof=true once the source is drained. After
// the source signals eof (or after Close), every subsequent call returns
// nodeerr.ErrPayloadConsumed.
func (p *Payload) Next() (chunk []byte, eof bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.consumed {
		return nil, false, nodeerr.ErrPayloadConsumed
	}

	chunk, eof, err = p.source.Next()
	if err != nil {
		p.consumed = true
		return nil, false, err
	}
	if eof {
		p.consumed = true
	}
	return chunk, eof, nil
}

// Close marks the payload consumed and releases its underlying source. Safe
// to call even if Next was never called; idempotent.
func (p *Payload) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.consumed {
		return nil
	}
	p.consumed = true
	return p.source.Close()
}

// Drain reads every remaining chunk and concatenates them. Intended for
// small in-process payloads (e.g. ping/pong); streaming handlers should use
// Next directly instead of buffering the whole payload in memory.
func (p *Payload) Drain() ([]byte, error) {
	var out []byte
	for {
		chunk, eof, err := p.Next()
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
		if eof {
			return out, nil
		}
	}
}
