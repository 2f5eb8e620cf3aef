package hstp

import "github.com/hstp/node/internal/nodeerr"

// ValidateOutbound checks the invariants an outbound header must satisfy
// before it is handed to a transport binding (§3): exactly one of
// destination or channel is set, and operation/source are non-empty.
func ValidateOutbound(h Header) error {
	if h.Operation == "" {
		return nodeerr.New(nodeerr.KindInvalidMessage, nodeerr.CodeUnparsableHeader, "operation is required")
	}
	if h.Source.IsZero() {
		return nodeerr.New(nodeerr.KindInvalidMessage, nodeerr.CodeUnparsableHeader, "source is required")
	}
	hasDest := h.HasDestination()
	hasChan := h.HasChannel()
	switch {
	case !hasDest && !hasChan:
		return nodeerr.New(nodeerr.KindInvalidMessage, nodeerr.CodeMissingTarget, "exactly one of destination or channel must be set")
	case hasDest && hasChan:
		return nodeerr.New(nodeerr.KindInvalidMessage, nodeerr.CodeAmbiguousTarget, "destination and channel are mutually exclusive")
	}
	return nil
}
