// Package transportmgr implements the Transport Manager (§4.6, component
// E): the owner of the node's effective set of transport bindings, the
// routing rules for outbound Send, and pub/sub fan-out for Subscribe and
// Unsubscribe. Cross-transport de-duplication of inbound messages is the
// engine's responsibility (§4.6), not this package's.
package transportmgr

import (
	"context"
	"fmt"
	"sync"

	"github.com/hstp/node/internal/did"
	"github.com/hstp/node/internal/hstp"
	"github.com/hstp/node/internal/nodeerr"
	"github.com/hstp/node/internal/transport"
)

// Manager owns the node's live transport bindings and routes outbound
// messages to the binding(s) able to carry them.
type Manager struct {
	mu        sync.RWMutex
	bindings  []transport.Binding
	onInbound func(ctx context.Context, msg hstp.Message) error
}

// New builds an empty Manager.
func New() *Manager {
	return &Manager{}
}

// OnInbound registers the callback the manager invokes for every inbound
// message a binding delivers. Typically the engine's dispatch entry point.
func (m *Manager) OnInbound(fn func(ctx context.Context, msg hstp.Message) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onInbound = fn
}

// AddBinding registers a live binding, wiring its receive callback through
// to whatever OnInbound handler is (or later becomes) registered.
func (m *Manager) AddBinding(b transport.Binding) {
	b.OnReceive(m.handleInbound)

	m.mu.Lock()
	m.bindings = append(m.bindings, b)
	m.mu.Unlock()
}

func (m *Manager) handleInbound(ctx context.Context, msg hstp.Message) error {
	m.mu.RLock()
	fn := m.onInbound
	m.mu.RUnlock()
	if fn == nil {
		return nil
	}
	return fn(ctx, msg)
}

// Start starts every registered binding, returning the first error
// encountered; bindings already started are left running since the caller
// is expected to treat Start failure as fatal to node startup.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.RLock()
	bindings := append([]transport.Binding(nil), m.bindings...)
	m.mu.RUnlock()

	for _, b := range bindings {
		if err := b.Start(ctx); err != nil {
			return nodeerr.Wrap(nodeerr.KindTransport, "BINDING_START_FAILED",
				fmt.Sprintf("binding %s failed to start", b.Protocol()), err)
		}
	}
	return nil
}

// Stop stops every registered binding, collecting errors rather than
// aborting at the first failure so a graceful shutdown makes a best effort
// across every transport.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.RLock()
	bindings := append([]transport.Binding(nil), m.bindings...)
	m.mu.RUnlock()

	var errs nodeerr.Errors
	for _, b := range bindings {
		if err := b.Stop(ctx); err != nil {
			errs.Add(nodeerr.Wrap(nodeerr.KindTransport, "BINDING_STOP_FAILED",
				fmt.Sprintf("binding %s failed to stop", b.Protocol()), err))
		}
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}

// Send routes msg to every binding able to carry it: point-to-point-capable
// bindings if the header has a Destination, pub/sub-capable bindings if it
// has a Channel. All matching bindings are attempted; errors are collected
// rather than short-circuiting.
func (m *Manager) Send(ctx context.Context, msg hstp.Message) error {
	m.mu.RLock()
	bindings := append([]transport.Binding(nil), m.bindings...)
	m.mu.RUnlock()

	wantPubSub := msg.Header.HasChannel()
	var matched int
	var errs nodeerr.Errors
	for _, b := range bindings {
		if wantPubSub && !b.SupportsPubSub() {
			continue
		}
		if !wantPubSub && !b.SupportsPointToPoint() {
			continue
		}
		matched++
		if err := b.Send(ctx, msg); err != nil {
			errs.Add(nodeerr.Wrap(nodeerr.KindTransport, "SEND_FAILED",
				fmt.Sprintf("binding %s failed to send message %s", b.Protocol(), msg.Header.ID), err))
		}
	}
	if matched == 0 {
		return nodeerr.New(nodeerr.KindTransport, "NO_CAPABLE_BINDING", "no registered binding can carry this message")
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}

// Subscribe asks every pub/sub-capable binding to subscribe to channel.
func (m *Manager) Subscribe(ctx context.Context, channel did.DID) error {
	m.mu.RLock()
	bindings := append([]transport.Binding(nil), m.bindings...)
	m.mu.RUnlock()

	var errs nodeerr.Errors
	for _, b := range bindings {
		if !b.SupportsPubSub() {
			continue
		}
		if err := b.Subscribe(ctx, channel); err != nil {
			errs.Add(nodeerr.Wrap(nodeerr.KindTransport, "SUBSCRIBE_FAILED",
				fmt.Sprintf("binding %s failed to subscribe to %s", b.Protocol(), channel), err))
		}
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}

// Unsubscribe asks every pub/sub-capable binding to unsubscribe from channel.
func (m *Manager) Unsubscribe(ctx context.Context, channel did.DID) error {
	m.mu.RLock()
	bindings := append([]transport.Binding(nil), m.bindings...)
	m.mu.RUnlock()

	var errs nodeerr.Errors
	for _, b := range bindings {
		if !b.SupportsPubSub() {
			continue
		}
		if err := b.Unsubscribe(ctx, channel); err != nil {
			errs.Add(nodeerr.Wrap(nodeerr.KindTransport, "UNSUBSCRIBE_FAILED",
				fmt.Sprintf("binding %s failed to unsubscribe from %s", b.Protocol(), channel), err))
		}
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}
