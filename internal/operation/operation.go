// Package operation implements the Operation Registry (§4.2): the explicit
// registration table mapping an HSTP message's operation name to the
// handler that executes it. There is no plugin-discovery-by-scanning here
// by design (§9 Design Notes) — registration is always an explicit call.
package operation

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hstp/node/internal/hstp"
	"github.com/hstp/node/internal/nodeerr"
)

// Handler executes one HSTP operation against a delivered message.
type Handler interface {
	// Operation returns the operation name this handler answers to.
	Operation() string
	// Handle processes the message, optionally returning a reply message.
	// A nil reply means the handler chose not to respond.
	Handle(ctx context.Context, mc *hstp.MessageContext) (*hstp.Message, error)
}

// HandlerFunc adapts a plain function to the Handler interface for
// operations simple enough not to need their own named type.
type HandlerFunc struct {
	Op string
	Fn func(ctx context.Context, mc *hstp.MessageContext) (*hstp.Message, error)
}

func (f HandlerFunc) Operation() string { return f.Op }

func (f HandlerFunc) Handle(ctx context.Context, mc *hstp.MessageContext) (*hstp.Message, error) {
	return f.Fn(ctx, mc)
}

// Registry is the engine's lookup table from operation name to Handler.
// Safe for concurrent use; registration is expected at startup but is not
// restricted to it.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry returns an empty operation registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds h under its own Operation() name, replacing any handler
// already bound to that name. Idempotent.
func (r *Registry) Register(h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	op := h.Operation()
	if op == "" {
		return nodeerr.New(nodeerr.KindConfig, "EMPTY_OPERATION_NAME", "handler returned an empty operation name")
	}
	r.handlers[op] = h
	return nil
}

// RegisterAll registers every handler in order, stopping at the first
// failure.
func (r *Registry) RegisterAll(handlers ...Handler) error {
	for _, h := range handlers {
		if err := r.Register(h); err != nil {
			return err
		}
	}
	return nil
}

// Unregister removes a handler, if present. Idempotent.
func (r *Registry) Unregister(operation string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, operation)
}

// Resolve looks up the handler bound to an operation name. The returned
// error is a KindUnknownOperation NodeError (§7), which the engine maps to
// a 501 reply (§4.6, S3).
func (r *Registry) Resolve(operation string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[operation]
	if !ok {
		return nil, nodeerr.New(nodeerr.KindUnknownOperation, nodeerr.CodeUnknownOperation,
			fmt.Sprintf("no handler registered for operation %q", operation))
	}
	return h, nil
}

// Operations returns every registered operation name, sorted for stable
// iteration (status pages, diagnostics).
func (r *Registry) Operations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ops := make([]string, 0, len(r.handlers))
	for op := range r.handlers {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}
