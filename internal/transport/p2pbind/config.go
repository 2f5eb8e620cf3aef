// Package p2pbind implements the reference P2P transport binding (§6):
// direct messages ride a go-libp2p host stream, channel messages ride
// go-libp2p-pubsub's gossipsub.
package p2pbind

import (
	"github.com/hstp/node/internal/nodeerr"
)

// ProtocolID is the libp2p stream protocol this binding speaks for
// direct message delivery.
const ProtocolID = "/hstp/1.0.0"

// Config configures one P2P binding instance.
type Config struct {
	// ListenAddrs are libp2p multiaddr strings the host listens on, e.g.
	// "/ip4/0.0.0.0/tcp/0".
	ListenAddrs []string
	// PeerAddrs maps a peer's DID string to the multiaddr (including its
	// "/p2p/<id>" suffix) this binding dials to reach it directly, since
	// DIDs carry no routing information of their own.
	PeerAddrs map[string]string
}

func configFromMap(cfg map[string]any) (Config, error) {
	var c Config

	if raw, ok := cfg["listenAddrs"].([]any); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				c.ListenAddrs = append(c.ListenAddrs, s)
			}
		}
	}
	if raw, ok := cfg["peerAddrs"].(map[string]any); ok {
		c.PeerAddrs = make(map[string]string, len(raw))
		for k, v := range raw {
			if s, ok := v.(string); ok {
				c.PeerAddrs[k] = s
			}
		}
	}

	if len(c.ListenAddrs) == 0 {
		return Config{}, nodeerr.New(nodeerr.KindConfig, "P2PBIND_LISTEN_ADDRS_REQUIRED", "p2p binding requires at least one listenAddrs entry")
	}
	return c, nil
}
