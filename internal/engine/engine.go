// Package engine implements the HSTP Engine (§4.6, component F): the
// dispatch core that turns an inbound wire message into an operation
// invocation, and correlates outbound expect-response sends with their
// eventual reply.
package engine

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hstp/node/internal/did"
	"github.com/hstp/node/internal/hstp"
	"github.com/hstp/node/internal/metrics"
	"github.com/hstp/node/internal/nodeerr"
	"github.com/hstp/node/internal/operation"
	"github.com/hstp/node/internal/tracing"
	"github.com/hstp/node/pkg/logging"
)

// DefaultDedupCapacity is the default bounded LRU size for inbound message
// de-duplication by header id (§4.6).
const DefaultDedupCapacity = 8192

// DefaultReplyTimeout is how long an outbound expect-response send waits
// for its correlated reply before timing out (§5).
const DefaultReplyTimeout = 30 * time.Second

// Sender delivers a message to the wire; implemented by the transport
// manager. A narrow interface here keeps the engine from needing the
// concrete transportmgr type.
type Sender interface {
	Send(ctx context.Context, msg hstp.Message) error
}

// Config configures a new Engine.
type Config struct {
	Self          did.DID
	Registry      *operation.Registry
	Transport     Sender
	Resolver      did.Resolver
	Verifier      did.Verifier
	DedupCapacity int           // 0 selects DefaultDedupCapacity
	ReplyTimeout  time.Duration // 0 selects DefaultReplyTimeout
}

// Engine is the dispatch core (§4.6). It holds references to the operation
// registry, the transport manager, the DID resolver/verifier, its own
// de-dup LRU, and the correlation table for outbound expect-response sends.
type Engine struct {
	self         did.DID
	registry     *operation.Registry
	transport    Sender
	resolver     did.Resolver
	verifier     did.Verifier
	dedup        *lru.Cache[string, struct{}]
	replyTimeout time.Duration
	correlation  *correlationTable
}

// New constructs an Engine from cfg.
func New(cfg Config) (*Engine, error) {
	dedupCap := cfg.DedupCapacity
	if dedupCap <= 0 {
		dedupCap = DefaultDedupCapacity
	}
	cache, err := lru.New[string, struct{}](dedupCap)
	if err != nil {
		return nil, nodeerr.Wrap(nodeerr.KindConfig, "DEDUP_CACHE_INIT_FAILED", "could not construct engine de-dup cache", err)
	}

	timeout := cfg.ReplyTimeout
	if timeout <= 0 {
		timeout = DefaultReplyTimeout
	}

	return &Engine{
		self:         cfg.Self,
		registry:     cfg.Registry,
		transport:    cfg.Transport,
		resolver:     cfg.Resolver,
		verifier:     cfg.Verifier,
		dedup:        cache,
		replyTimeout: timeout,
		correlation:  newCorrelationTable(),
	}, nil
}

// HandleMessage runs the full dispatch pipeline for an inbound message:
// de-dup, enrich, authenticate, dispatch, reply (§4.6, steps 1-6).
func (e *Engine) HandleMessage(ctx context.Context, msg hstp.Message) error {
	ctx, span := tracing.StartMessageSpan(ctx, msg.Header.Operation, msg.Header.ID)
	defer span.End()

	if e.isDuplicate(msg.Header.ID) {
		metrics.RecordDedupDropped()
		logging.Debug("engine", "dropping duplicate message id=%s", msg.Header.ID)
		return nil
	}

	if msg.Header.IsReply() {
		if e.correlation.complete(msg.Header.InReplyTo, &msg) {
			return nil
		}
	}

	enrichCtx, enrichSpan := tracing.StartStepSpan(ctx, "enrich")
	mc, err := e.enrich(enrichCtx, msg)
	enrichSpan.End()
	if err != nil {
		return err
	}

	authCtx, authSpan := tracing.StartStepSpan(ctx, "authenticate")
	e.authenticate(authCtx, mc)
	authSpan.End()

	dispatchCtx, dispatchSpan := tracing.StartStepSpan(ctx, "dispatch")
	reply, handlerErr := e.dispatch(dispatchCtx, mc)
	dispatchSpan.End()
	if handlerErr != nil {
		logging.Error("engine", handlerErr, "handler error for operation=%s message=%s", msg.Header.Operation, msg.Header.ID)
		reply = errorReply(msg.Header, e.self, handlerErr)
	}
	if reply == nil {
		return nil
	}

	replyCtx, replySpan := tracing.StartStepSpan(ctx, "reply")
	defer replySpan.End()
	return e.Send(replyCtx, *reply)
}

// enrich resolves the message's source (and destination, if set) DID
// documents concurrently, populating a MessageContext (§4.6 step 2).
func (e *Engine) enrich(ctx context.Context, msg hstp.Message) (*hstp.MessageContext, error) {
	mc := &hstp.MessageContext{Message: msg, Engine: e}

	if e.resolver == nil {
		return mc, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		doc, err := e.resolver.ResolveDid(gctx, msg.Header.Source)
		if err != nil {
			logging.Warn("engine", "could not resolve source did=%s: %v", msg.Header.Source, err)
			return nil
		}
		mc.SourceDocument = doc
		return nil
	})
	if msg.Header.HasDestination() {
		g.Go(func() error {
			doc, err := e.resolver.ResolveDid(gctx, msg.Header.Destination)
			if err != nil {
				logging.Warn("engine", "could not resolve destination did=%s: %v", msg.Header.Destination, err)
				return nil
			}
			mc.DestinationDocument = doc
			return nil
		})
	}
	_ = g.Wait() // resolution failures are logged, never fatal to dispatch
	return mc, nil
}

// authenticate is the credential step of dispatch (§4.6 step 3). It
// verifies no credential and records no verification outcome on mc, and it
// never drops the message; policy is left to handlers.
func (e *Engine) authenticate(ctx context.Context, mc *hstp.MessageContext) {
	if e.verifier == nil {
		return
	}
	// Credentials travel in the payload or a transport-specific sidecar
	// header; this core has no opinion on their encoding, so a handler
	// that needs one verifies it itself with the bytes it extracts. The
	// configured verifier is not passed on through the context.
	_ = mc
}

// dispatch resolves the operation handler and invokes it (§4.6 steps 4-5).
func (e *Engine) dispatch(ctx context.Context, mc *hstp.MessageContext) (*hstp.Message, error) {
	handler, err := e.registry.Resolve(mc.Message.Header.Operation)
	if err != nil {
		metrics.RecordUnknownOperation()
		if mc.Message.Header.ExpectResponse {
			status := 501
			reply := hstp.Message{
				Header: hstp.NewHeader(mc.Message.Header.Operation, e.replySource(mc.Message.Header),
					hstp.WithDestination(mc.Message.Header.Source),
					hstp.WithInReplyTo(mc.Message.Header.ID),
					hstp.WithStatus(status),
				),
				Payload: hstp.EmptyPayload(),
			}
			return &reply, nil
		}
		logging.Debug("engine", "dropping unanswerable unknown operation=%s", mc.Message.Header.Operation)
		return nil, nil
	}
	reply, err := handler.Handle(ctx, mc)
	if err == nil {
		metrics.RecordDispatch(mc.Message.Header.Operation)
	}
	return reply, err
}

// replySource is the DID a reply is sent from: the original destination if
// the inbound message had one, otherwise the node's own DID (§4.6 step 6).
func (e *Engine) replySource(h hstp.Header) did.DID {
	if h.HasDestination() {
		return h.Destination
	}
	return e.self
}

func errorReply(h hstp.Header, self did.DID, err error) *hstp.Message {
	if !h.ExpectResponse {
		return nil
	}
	src := h.Destination
	if src.IsZero() {
		src = self
	}
	status := 500
	return &hstp.Message{
		Header: hstp.NewHeader(h.Operation, src,
			hstp.WithDestination(h.Source),
			hstp.WithInReplyTo(h.ID),
			hstp.WithStatus(status),
		),
		Payload: hstp.NewBytesPayload([]byte(err.Error())),
	}
}

// Send validates and forwards an outbound message to the transport manager
// (implements hstp.Replier for handlers, and is also the Engine's own
// public send path). It registers no correlation waiter, even when the
// message expects a response; SendAndAwaitReply does that.
func (e *Engine) Send(ctx context.Context, msg hstp.Message) error {
	if err := hstp.ValidateOutbound(msg.Header); err != nil {
		return err
	}
	return e.transport.Send(ctx, msg)
}

// SendAndAwaitReply sends msg (which must have ExpectResponse set) and
// blocks until its correlated reply arrives or the engine's reply timeout
// elapses.
func (e *Engine) SendAndAwaitReply(ctx context.Context, msg hstp.Message) (*hstp.Message, error) {
	if !msg.Header.ExpectResponse {
		return nil, nodeerr.New(nodeerr.KindInvalidMessage, "NOT_EXPECTING_RESPONSE", "message does not set expectResponse")
	}
	waiter := e.correlation.register(msg.Header.ID)
	defer e.correlation.cancel(msg.Header.ID)

	if err := e.Send(ctx, msg); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.replyTimeout)
	defer cancel()

	select {
	case reply := <-waiter:
		return reply, nil
	case <-ctx.Done():
		return nil, nodeerr.New(nodeerr.KindTransport, "REPLY_TIMEOUT", "timed out waiting for reply")
	}
}

func (e *Engine) isDuplicate(id string) bool {
	if _, ok := e.dedup.Get(id); ok {
		return true
	}
	e.dedup.Add(id, struct{}{})
	return false
}
