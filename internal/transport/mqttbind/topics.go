package mqttbind

import (
	"strings"

	"github.com/hstp/node/internal/did"
)

const (
	directSegment  = "direct"
	channelSegment = "channel"
)

func directTopic(prefix string, target did.DID) string {
	return prefix + "/" + directSegment + "/" + target.SafeToken()
}

func channelTopic(prefix string, channel did.DID) string {
	return prefix + "/" + channelSegment + "/" + channel.SafeToken()
}

// directSubscriptionFilter is the topic this binding subscribes to at
// startup so it receives every direct message addressed to self. It is
// the exact direct topic for self, with no wildcard.
func directSubscriptionFilter(prefix string, self did.DID) string {
	return directTopic(prefix, self)
}

// isChannelTopic reports whether topic names a channel publish, returning
// the did-safe token segment if so.
func isChannelTopic(prefix, topic string) (string, bool) {
	want := prefix + "/" + channelSegment + "/"
	if !strings.HasPrefix(topic, want) {
		return "", false
	}
	return strings.TrimPrefix(topic, want), true
}
