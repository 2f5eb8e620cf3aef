// Package httpbind implements the reference HTTP/WebSocket transport
// binding (§6): direct messages POST JSON to "{baseUrl}/hstp"; a
// gorilla/websocket connection to "{ws|wss}/hstp/ws" carries any message
// where ExpectResponse is set or that targets a channel.
package httpbind

import (
	"fmt"
	"strings"

	"github.com/hstp/node/internal/nodeerr"
)

// DefaultWSPath is appended to a binding's websocket base to reach the
// upgrade endpoint, per §6.
const DefaultWSPath = "/hstp/ws"

// DefaultDirectPath is appended to BaseURL to reach the direct-message
// POST endpoint, per §6.
const DefaultDirectPath = "/hstp"

// Config configures one HTTP/WebSocket binding instance.
type Config struct {
	// ListenAddr is the local address this binding's inbound HTTP server
	// binds to (e.g. ":8443"). Empty disables the inbound server, leaving
	// the binding outbound-only.
	ListenAddr string
	// RemoteBaseURL is the peer endpoint outbound Send targets, e.g.
	// "https://peer.example.com".
	RemoteBaseURL string
	// TLSCertFile/TLSKeyFile enable TLS on the inbound server when both
	// are set.
	TLSCertFile string
	TLSKeyFile  string
}

func configFromMap(cfg map[string]any) (Config, error) {
	var c Config
	if v, ok := cfg["listenAddr"].(string); ok {
		c.ListenAddr = v
	}
	if v, ok := cfg["remoteBaseUrl"].(string); ok {
		c.RemoteBaseURL = v
	}
	if v, ok := cfg["tlsCertFile"].(string); ok {
		c.TLSCertFile = v
	}
	if v, ok := cfg["tlsKeyFile"].(string); ok {
		c.TLSKeyFile = v
	}
	if c.ListenAddr == "" && c.RemoteBaseURL == "" {
		return Config{}, nodeerr.New(nodeerr.KindConfig, "HTTPBIND_CONFIG_EMPTY",
			"http binding needs at least one of listenAddr or remoteBaseUrl")
	}
	return c, nil
}

// isTLS reports whether this instance should be treated as https/wss.
func (c Config) isTLS() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != "" || strings.HasPrefix(c.RemoteBaseURL, "https://")
}

func wsURL(baseURL string) (string, error) {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(baseURL, "https://") + DefaultWSPath, nil
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(baseURL, "http://") + DefaultWSPath, nil
	default:
		return "", fmt.Errorf("httpbind: remoteBaseUrl %q must start with http:// or https://", baseURL)
	}
}
