// Package nodeconfig loads and validates the node's YAML configuration:
// the top-level node config file and the transport config files it
// references (§6).
package nodeconfig

// NodeConfig is the top-level config.yaml shape consumed by the core (§6).
type NodeConfig struct {
	NodeID      string   `yaml:"nodeId"`
	Name        string   `yaml:"name"`
	Version     string   `yaml:"version"`
	Description string   `yaml:"description"`
	Transports  []string `yaml:"transports"`
	Logging     Logging  `yaml:"logging"`
	Metrics     Metrics  `yaml:"metrics"`
	Security    Security `yaml:"security"`
}

// Logging configures the observability bootstrap (§6).
type Logging struct {
	Level       string `yaml:"level"`
	File        string `yaml:"file"`
	Console     bool   `yaml:"console"`
	MaxFileSize string `yaml:"maxFileSize"`
	MaxHistory  int    `yaml:"maxHistory"`
}

// Metrics configures the optional Prometheus endpoint (§6).
type Metrics struct {
	Enabled  bool   `yaml:"enabled"`
	Port     int    `yaml:"port"`
	Endpoint string `yaml:"endpoint"`
}

// Security configures TLS and authentication (§6).
type Security struct {
	TLS            TLS            `yaml:"tls"`
	Authentication Authentication `yaml:"authentication"`
}

// TLS configures transport-level TLS (§6).
type TLS struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"certFile"`
	KeyFile  string `yaml:"keyFile"`
}

// Authentication configures the node's credential checking (§6).
type Authentication struct {
	Enabled bool                `yaml:"enabled"`
	Type    string              `yaml:"type"`
	Users   []AuthenticatedUser `yaml:"users"`
}

// AuthenticatedUser is one entry in security.authentication.users.
type AuthenticatedUser struct {
	Name         string `yaml:"name"`
	PasswordHash string `yaml:"passwordHash"`
}

// TransportFile is one file in the transports list: a record per
// configured binding instance (§6).
type TransportFile struct {
	Transports []TransportRecord `yaml:"transports"`
}

// TransportRecord is one transport binding's configuration (§6).
type TransportRecord struct {
	Name    string         `yaml:"name"`
	Type    string         `yaml:"type"`
	Enabled bool           `yaml:"enabled"`
	Config  map[string]any `yaml:"config"`
}

// DefaultNodeConfig returns the zero-value-safe defaults applied before a
// config.yaml is unmarshalled over them, mirroring the teacher's
// defaults-first load order.
func DefaultNodeConfig() NodeConfig {
	return NodeConfig{
		Logging: Logging{
			Level:   "info",
			Console: true,
		},
		Metrics: Metrics{
			Enabled:  false,
			Port:     9090,
			Endpoint: "/metrics",
		},
	}
}
