package operation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hstp/node/internal/hstp"
	"github.com/hstp/node/internal/nodeerr"
)

func noopHandler(op string) Handler {
	return HandlerFunc{Op: op, Fn: func(ctx context.Context, mc *hstp.MessageContext) (*hstp.Message, error) {
		return nil, nil
	}}
}

func TestRegisterAndResolve(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(noopHandler("ping")))

	h, err := r.Resolve("ping")
	require.NoError(t, err)
	assert.Equal(t, "ping", h.Operation())
}

func TestResolveUnknownOperation(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve("does-not-exist")
	require.Error(t, err)
	assert.True(t, nodeerr.Is(err, nodeerr.KindUnknownOperation))
}

func TestRegisterReplacesExistingHandler(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(noopHandler("ping")))

	replacement := HandlerFunc{Op: "ping", Fn: func(ctx context.Context, mc *hstp.MessageContext) (*hstp.Message, error) {
		return &hstp.Message{}, nil
	}}
	require.NoError(t, r.Register(replacement))

	h, err := r.Resolve("ping")
	require.NoError(t, err)
	reply, _ := h.Handle(context.Background(), nil)
	assert.NotNil(t, reply)
}

func TestUnregisterIsIdempotent(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(noopHandler("ping")))
	r.Unregister("ping")
	r.Unregister("ping")

	_, err := r.Resolve("ping")
	assert.Error(t, err)
}

func TestOperationsSorted(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterAll(noopHandler("pong"), noopHandler("ping")))
	assert.Equal(t, []string{"ping", "pong"}, r.Operations())
}
