package httpbind

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/hstp/node/internal/did"
	"github.com/hstp/node/internal/hstp"
	"github.com/hstp/node/internal/nodeerr"
	"github.com/hstp/node/internal/transport"
	"github.com/hstp/node/internal/transport/wire"
	"github.com/hstp/node/pkg/logging"
)

// Binding is one configured HTTP/WebSocket transport instance: an
// optional inbound listener, and an optional outbound peer it can POST
// or stream messages to.
type Binding struct {
	name string
	cfg  Config

	httpClient *http.Client
	upgrader   websocket.Upgrader

	server *http.Server

	mu     sync.Mutex
	onRecv []transport.ReceiveFunc

	wsMu    sync.Mutex
	wsConn  *websocket.Conn
	channel map[string]struct{}
}

// New constructs a Binding from cfg. name identifies the instance for
// logging and diagnostics.
func New(name string, cfg Config) *Binding {
	return &Binding{
		name:       name,
		cfg:        cfg,
		httpClient: &http.Client{},
		upgrader:   websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		channel:    make(map[string]struct{}),
	}
}

// Protocol reports https when TLS material is configured or the remote
// peer is addressed by an https:// URL, http otherwise (§6).
func (b *Binding) Protocol() transport.Protocol {
	if b.cfg.isTLS() {
		return transport.ProtocolHTTPS
	}
	return transport.ProtocolHTTP
}

// OnReceive registers a callback invoked for every inbound message,
// whether delivered over the direct POST endpoint or the websocket leg.
// Multiple registrations accumulate; every one is invoked for each
// message delivered.
func (b *Binding) OnReceive(fn transport.ReceiveFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onRecv = append(b.onRecv, fn)
}

func (b *Binding) deliver(ctx context.Context, msg hstp.Message) error {
	b.mu.Lock()
	fns := make([]transport.ReceiveFunc, len(b.onRecv))
	copy(fns, b.onRecv)
	b.mu.Unlock()
	if len(fns) == 0 {
		logging.Debug("httpbind", "binding %s dropping inbound message, no receiver registered", b.name)
		return nil
	}
	var firstErr error
	for _, fn := range fns {
		if err := fn(ctx, msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Start brings up the inbound HTTP server, if ListenAddr is configured.
func (b *Binding) Start(ctx context.Context) error {
	if b.cfg.ListenAddr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc(DefaultDirectPath, b.handleDirect)
	mux.HandleFunc(DefaultWSPath, b.handleWebSocket)

	b.server = &http.Server{Addr: b.cfg.ListenAddr, Handler: mux}

	go func() {
		var err error
		if b.cfg.TLSCertFile != "" && b.cfg.TLSKeyFile != "" {
			err = b.server.ListenAndServeTLS(b.cfg.TLSCertFile, b.cfg.TLSKeyFile)
		} else {
			err = b.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logging.Error("httpbind", err, "binding %s inbound server exited", b.name)
		}
	}()
	logging.Info("httpbind", "binding %s listening on %s", b.name, b.cfg.ListenAddr)
	return nil
}

// Stop shuts down the inbound server (if running) and closes any open
// outbound websocket connection.
func (b *Binding) Stop(ctx context.Context) error {
	var errs nodeerr.Errors

	if b.server != nil {
		if err := b.server.Shutdown(ctx); err != nil {
			errs.Add(nodeerr.Wrap(nodeerr.KindTransport, "HTTPBIND_SERVER_SHUTDOWN_FAILED",
				fmt.Sprintf("binding %s inbound server shutdown failed", b.name), err))
		}
	}

	b.wsMu.Lock()
	if b.wsConn != nil {
		_ = b.wsConn.Close()
		b.wsConn = nil
	}
	b.wsMu.Unlock()

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// Send delivers msg to the configured remote peer: over the websocket leg
// when a reply is expected or the message targets a channel, otherwise
// as a direct JSON POST (§6).
func (b *Binding) Send(ctx context.Context, msg hstp.Message) error {
	if b.cfg.RemoteBaseURL == "" {
		return nodeerr.New(nodeerr.KindTransport, "HTTPBIND_NO_REMOTE", "binding has no configured remote endpoint")
	}
	if msg.Header.ExpectResponse || msg.Header.HasChannel() {
		return b.sendViaWebSocket(ctx, msg)
	}
	return b.sendViaPost(ctx, msg)
}

func (b *Binding) sendViaPost(ctx context.Context, msg hstp.Message) error {
	body, err := wire.Encode(msg)
	if err != nil {
		return err
	}
	url := b.cfg.RemoteBaseURL + DefaultDirectPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("httpbind: building request to %s: %w", url, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nodeerr.Wrap(nodeerr.KindTransport, "HTTPBIND_POST_FAILED",
			fmt.Sprintf("POST to %s failed", url), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nodeerr.New(nodeerr.KindTransport, "HTTPBIND_POST_REJECTED",
			fmt.Sprintf("peer rejected POST to %s with status %d", url, resp.StatusCode))
	}
	return nil
}

func (b *Binding) sendViaWebSocket(ctx context.Context, msg hstp.Message) error {
	conn, err := b.dialWebSocket(ctx)
	if err != nil {
		return err
	}

	body, err := wire.Encode(msg)
	if err != nil {
		return err
	}

	b.wsMu.Lock()
	defer b.wsMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, body); err != nil {
		b.wsConn = nil
		return nodeerr.Wrap(nodeerr.KindTransport, "HTTPBIND_WS_WRITE_FAILED", "websocket write failed", err)
	}
	return nil
}

func (b *Binding) dialWebSocket(ctx context.Context) (*websocket.Conn, error) {
	b.wsMu.Lock()
	if b.wsConn != nil {
		conn := b.wsConn
		b.wsMu.Unlock()
		return conn, nil
	}
	b.wsMu.Unlock()

	url, err := wsURL(b.cfg.RemoteBaseURL)
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, nodeerr.Wrap(nodeerr.KindTransport, "HTTPBIND_WS_DIAL_FAILED",
			fmt.Sprintf("dialing %s failed", url), err)
	}

	b.wsMu.Lock()
	b.wsConn = conn
	b.wsMu.Unlock()

	go b.readLoop(conn)
	return conn, nil
}

func (b *Binding) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			logging.Debug("httpbind", "binding %s websocket read loop ending: %v", b.name, err)
			b.wsMu.Lock()
			if b.wsConn == conn {
				b.wsConn = nil
			}
			b.wsMu.Unlock()
			return
		}
		msg, err := wire.Decode(data)
		if err != nil {
			logging.Warn("httpbind", "binding %s dropping malformed websocket frame: %v", b.name, err)
			continue
		}
		if err := b.deliver(context.Background(), msg); err != nil {
			logging.Error("httpbind", err, "binding %s inbound handler failed", b.name)
		}
	}
}

// SupportsPointToPoint is always true: direct POST and websocket delivery
// both address a single peer.
func (b *Binding) SupportsPointToPoint() bool { return true }

// SupportsPubSub reports true: channel traffic rides the same websocket
// leg as expect-response traffic (§6).
func (b *Binding) SupportsPubSub() bool { return true }

// Subscribe records channel as one this binding should treat as relevant;
// since this reference binding addresses a single peer rather than a
// broker, there is no protocol-level subscribe handshake to perform.
func (b *Binding) Subscribe(ctx context.Context, channel did.DID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channel[channel.String()] = struct{}{}
	return nil
}

// Unsubscribe removes channel from the set of channels this binding
// considers relevant.
func (b *Binding) Unsubscribe(ctx context.Context, channel did.DID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.channel, channel.String())
	return nil
}

// IsSubscribed reports whether channel is currently tracked as relevant
// to this binding.
func (b *Binding) IsSubscribed(channel did.DID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.channel[channel.String()]
	return ok
}

func (b *Binding) handleDirect(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	msg, err := wire.Decode(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := b.deliver(r.Context(), msg); err != nil {
		logging.Error("httpbind", err, "binding %s inbound handler failed", b.name)
		http.Error(w, "handler error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (b *Binding) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("httpbind", "binding %s websocket upgrade failed: %v", b.name, err)
		return
	}
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := wire.Decode(data)
		if err != nil {
			logging.Warn("httpbind", "binding %s dropping malformed websocket frame: %v", b.name, err)
			continue
		}
		if err := b.deliver(r.Context(), msg); err != nil {
			logging.Error("httpbind", err, "binding %s inbound handler failed", b.name)
		}
	}
}
