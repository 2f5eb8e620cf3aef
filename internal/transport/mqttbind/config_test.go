package mqttbind

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFromMapRequiresBrokerURL(t *testing.T) {
	_, err := configFromMap(map[string]any{})
	assert.Error(t, err)
}

func TestConfigFromMapAppliesDefaults(t *testing.T) {
	c, err := configFromMap(map[string]any{"brokerUrl": "tcp://localhost:1883"})
	require.NoError(t, err)
	assert.Equal(t, "hstp", c.TopicPrefix)
	assert.Equal(t, DefaultQoS, c.QoS)
}

func TestConfigFromMapRejectsInvalidQoS(t *testing.T) {
	_, err := configFromMap(map[string]any{"brokerUrl": "tcp://localhost:1883", "qos": float64(3)})
	assert.Error(t, err)
}

func TestConfigFromMapOverridesPrefixAndQoS(t *testing.T) {
	c, err := configFromMap(map[string]any{
		"brokerUrl":   "ssl://localhost:8883",
		"topicPrefix": "custom",
		"qos":         float64(2),
		"clientId":    "node-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "custom", c.TopicPrefix)
	assert.Equal(t, byte(2), c.QoS)
	assert.Equal(t, "node-1", c.ClientID)
}
