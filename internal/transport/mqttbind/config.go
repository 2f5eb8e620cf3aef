// Package mqttbind implements the reference MQTT transport binding (§6):
// direct messages publish to "{prefix}/direct/{did-safe}", channel
// messages to "{prefix}/channel/{did-safe}", wrapping
// github.com/eclipse/paho.mqtt.golang.
package mqttbind

import (
	"github.com/hstp/node/internal/nodeerr"
)

// DefaultQoS is applied when a binding's config map has no qos key; an
// explicit qos of 0 is kept.
const DefaultQoS = byte(1)

// Config configures one MQTT binding instance.
type Config struct {
	BrokerURL   string // e.g. "tcp://broker.example.com:1883" or "ssl://..."
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string // defaults to "hstp"
	QoS         byte   // 0, 1, or 2
}

func configFromMap(cfg map[string]any) (Config, error) {
	c := Config{TopicPrefix: "hstp", QoS: DefaultQoS}

	if v, ok := cfg["brokerUrl"].(string); ok {
		c.BrokerURL = v
	}
	if v, ok := cfg["clientId"].(string); ok {
		c.ClientID = v
	}
	if v, ok := cfg["username"].(string); ok {
		c.Username = v
	}
	if v, ok := cfg["password"].(string); ok {
		c.Password = v
	}
	if v, ok := cfg["topicPrefix"].(string); ok && v != "" {
		c.TopicPrefix = v
	}
	if v, ok := cfg["qos"].(float64); ok {
		c.QoS = byte(v)
	}
	if v, ok := cfg["qos"].(int); ok {
		c.QoS = byte(v)
	}

	if c.BrokerURL == "" {
		return Config{}, nodeerr.New(nodeerr.KindConfig, "MQTTBIND_BROKER_URL_REQUIRED", "mqtt binding requires brokerUrl")
	}
	if c.QoS > 2 {
		return Config{}, nodeerr.New(nodeerr.KindConfig, "MQTTBIND_QOS_INVALID", "mqtt qos must be 0, 1, or 2")
	}
	return c, nil
}
