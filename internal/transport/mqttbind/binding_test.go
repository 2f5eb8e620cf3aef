package mqttbind

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hstp/node/internal/did"
	"github.com/hstp/node/internal/hstp"
)

// brokerURL returns the broker to exercise the live-connection tests
// against, read from HSTP_TEST_MQTT_BROKER. These tests are skipped
// without one: they need an actual MQTT broker (e.g. mosquitto) to
// connect to, which this pack does not provision.
func brokerURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("HSTP_TEST_MQTT_BROKER")
	if url == "" {
		t.Skip("set HSTP_TEST_MQTT_BROKER to a running broker to exercise mqttbind's live connection path")
	}
	return url
}

func TestBindingRoundTripOverLiveBroker(t *testing.T) {
	url := brokerURL(t)

	self := did.MustParse("did:example:receiver")
	peer := did.MustParse("did:example:sender")

	received := make(chan hstp.Message, 1)
	receiver := New("receiver", Config{BrokerURL: url, TopicPrefix: "hstp-test", QoS: 1}, self)
	receiver.OnReceive(func(ctx context.Context, msg hstp.Message) error {
		received <- msg
		return nil
	})
	require.NoError(t, receiver.Start(context.Background()))
	defer receiver.Stop(context.Background())

	sender := New("sender", Config{BrokerURL: url, TopicPrefix: "hstp-test", QoS: 1}, peer)
	require.NoError(t, sender.Start(context.Background()))
	defer sender.Stop(context.Background())

	msg := hstp.Message{
		Header:  hstp.NewHeader("hstp.ping", peer, hstp.WithDestination(self)),
		Payload: hstp.NewBytesPayload([]byte("hello")),
	}
	require.NoError(t, sender.Send(context.Background(), msg))

	select {
	case got := <-received:
		assert.Equal(t, "hstp.ping", got.Header.Operation)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message delivery")
	}
}

func TestSendBeforeStartFails(t *testing.T) {
	self := did.MustParse("did:example:node1")
	b := New("b", Config{BrokerURL: "tcp://localhost:1883"}, self)
	src := did.MustParse("did:example:alice")
	msg := hstp.Message{Header: hstp.NewHeader("hstp.ping", src), Payload: hstp.EmptyPayload()}
	err := b.Send(context.Background(), msg)
	assert.Error(t, err)
}

func TestClientIDDefaultsToSelfSafeToken(t *testing.T) {
	self := did.MustParse("did:example:node1")
	assert.Equal(t, "hstp-did_example_node1", clientID(Config{}, self))
	assert.Equal(t, "custom-id", clientID(Config{ClientID: "custom-id"}, self))
}
