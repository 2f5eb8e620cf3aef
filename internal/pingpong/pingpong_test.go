package pingpong

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hstp/node/internal/did"
	"github.com/hstp/node/internal/hstp"
)

func alice() did.DID { return did.MustParse("did:example:alice") }
func bob() did.DID   { return did.MustParse("did:example:bob") }

func TestPingHandlerRepliesWithIdenticalPayload(t *testing.T) {
	h := NewDirectPing(alice(), bob())
	msg := hstp.Message{Header: h, Payload: hstp.NewBytesPayload([]byte("hello"))}
	mc := &hstp.MessageContext{Message: msg}

	reply, err := PingHandler{}.Handle(context.Background(), mc)
	require.NoError(t, err)
	require.NotNil(t, reply)

	assert.Equal(t, OperationPong, reply.Header.Operation)
	assert.Equal(t, h.ID, reply.Header.InReplyTo)
	assert.True(t, reply.Header.Destination.Equal(alice()))

	data, err := reply.Payload.Drain()
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
}

func TestPingHandlerSkipsChannelPing(t *testing.T) {
	h := NewChannelPing(alice(), bob())
	mc := &hstp.MessageContext{Message: hstp.Message{Header: h, Payload: hstp.EmptyPayload()}}

	reply, err := PingHandler{}.Handle(context.Background(), mc)
	require.NoError(t, err)
	assert.Nil(t, reply)
}

func TestPingHandlerSkipsWithoutExpectResponse(t *testing.T) {
	h := hstp.NewHeader(OperationPing, alice(), hstp.WithDestination(bob()))
	mc := &hstp.MessageContext{Message: hstp.Message{Header: h, Payload: hstp.EmptyPayload()}}

	reply, err := PingHandler{}.Handle(context.Background(), mc)
	require.NoError(t, err)
	assert.Nil(t, reply)
}

func TestIsPongForMatchesByInReplyTo(t *testing.T) {
	ping := NewDirectPing(alice(), bob())
	pong := hstp.NewHeader(OperationPong, bob(), hstp.WithDestination(alice()), hstp.WithInReplyTo(ping.ID))

	assert.True(t, IsPongFor(pong, ping))

	other := hstp.NewHeader(OperationPong, bob(), hstp.WithDestination(alice()), hstp.WithInReplyTo("different"))
	assert.False(t, IsPongFor(other, ping))
}

func TestRoundTripTime(t *testing.T) {
	ping := hstp.Header{Timestamp: time.Unix(0, 0)}
	pong := hstp.Header{Timestamp: time.Unix(1, 0)}
	assert.Equal(t, time.Second, RoundTripTime(ping, pong))
}
