package p2pbind

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFromMapRequiresListenAddrs(t *testing.T) {
	_, err := configFromMap(map[string]any{})
	assert.Error(t, err)
}

func TestConfigFromMapExtractsListenAddrsAndPeerAddrs(t *testing.T) {
	c, err := configFromMap(map[string]any{
		"listenAddrs": []any{"/ip4/0.0.0.0/tcp/0", "/ip6/::/tcp/0"},
		"peerAddrs": map[string]any{
			"did:example:alice": "/ip4/127.0.0.1/tcp/4001/p2p/QmAlice",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/ip4/0.0.0.0/tcp/0", "/ip6/::/tcp/0"}, c.ListenAddrs)
	assert.Equal(t, "/ip4/127.0.0.1/tcp/4001/p2p/QmAlice", c.PeerAddrs["did:example:alice"])
}

func TestConfigFromMapIgnoresNonStringEntries(t *testing.T) {
	c, err := configFromMap(map[string]any{
		"listenAddrs": []any{"/ip4/0.0.0.0/tcp/0", 42},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/ip4/0.0.0.0/tcp/0"}, c.ListenAddrs)
}
