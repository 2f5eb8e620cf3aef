package hstp

import (
	"context"

	"github.com/hstp/node/internal/did"
)

// Replier is the minimal engine handle a handler needs to send a reply or a
// fresh outbound message without importing the engine package directly
// (avoids an import cycle between hstp and engine).
type Replier interface {
	Send(ctx context.Context, msg Message) error
}

// MessageContext is the per-delivery envelope handed to an OperationHandler.
// Fields populated during the enrich/authenticate pipeline stages (§4.6) are
// read-only from the handler's perspective; nothing here is mutated once
// dispatch begins.
type MessageContext struct {
	Message Message
	Engine  Replier

	SourceDocument      did.Document
	DestinationDocument did.Document
	Credentials         []did.VerificationResult
}

// Reply sends msg back through the owning engine. Handlers use this instead
// of reaching for a transport binding directly.
func (mc *MessageContext) Reply(ctx context.Context, msg Message) error {
	return mc.Engine.Send(ctx, msg)
}
