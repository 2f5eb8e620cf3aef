package hstp

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hstp/node/internal/did"
	"github.com/hstp/node/internal/nodeerr"
)

func alice() did.DID { return did.MustParse("did:example:alice") }
func bob() did.DID   { return did.MustParse("did:example:bob") }

func TestNewHeaderDefaults(t *testing.T) {
	h := NewHeader("ping", alice(), WithDestination(bob()))
	assert.NotEmpty(t, h.ID)
	assert.Equal(t, DefaultMediaType, h.MediaType)
	assert.False(t, h.Timestamp.IsZero())
	assert.True(t, h.HasDestination())
	assert.False(t, h.HasChannel())
	assert.False(t, h.IsReply())
}

func TestValidateOutboundRejectsNeitherTarget(t *testing.T) {
	h := NewHeader("ping", alice())
	err := ValidateOutbound(h)
	require.Error(t, err)
	assert.True(t, nodeerr.Is(err, nodeerr.KindInvalidMessage))
}

func TestValidateOutboundRejectsBothTargets(t *testing.T) {
	h := NewHeader("ping", alice(), WithDestination(bob()), WithChannel(bob()))
	err := ValidateOutbound(h)
	require.Error(t, err)
	var ne *nodeerr.NodeError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, nodeerr.CodeAmbiguousTarget, ne.Code)
}

func TestValidateOutboundAcceptsExactlyOne(t *testing.T) {
	assert.NoError(t, ValidateOutbound(NewHeader("ping", alice(), WithDestination(bob()))))
	assert.NoError(t, ValidateOutbound(NewHeader("ping", alice(), WithChannel(bob()))))
}

func TestPayloadSingleConsumption(t *testing.T) {
	p := NewBytesPayload([]byte("hello"))

	data, err := p.Drain()
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	_, _, err = p.Next()
	assert.ErrorIs(t, err, nodeerr.ErrPayloadConsumed)
}

func TestPayloadCloseBeforeReadPreventsConsumption(t *testing.T) {
	p := NewBytesPayload([]byte("hello"))
	require.NoError(t, p.Close())

	_, _, err := p.Next()
	assert.ErrorIs(t, err, nodeerr.ErrPayloadConsumed)

	assert.NoError(t, p.Close())
}

func TestEmptyPayloadDrainsToNil(t *testing.T) {
	p := EmptyPayload()
	data, err := p.Drain()
	require.NoError(t, err)
	assert.Empty(t, data)
}
