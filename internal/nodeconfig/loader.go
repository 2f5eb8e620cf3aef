package nodeconfig

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hstp/node/pkg/logging"
)

// interpolationPattern matches ${VAR} and ${VAR:-default}.
var interpolationPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-[^}]*)?\}`)

// interpolateEnv substitutes ${VAR} / ${VAR:-default} in text against the
// process environment, ahead of YAML decoding (§6, SUPPLEMENTED FEATURES).
func interpolateEnv(text string) string {
	return interpolationPattern.ReplaceAllStringFunc(text, func(match string) string {
		groups := interpolationPattern.FindStringSubmatch(match)
		name, fallback := groups[1], groups[2]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		if strings.HasPrefix(fallback, ":-") {
			return strings.TrimPrefix(fallback, ":-")
		}
		return ""
	})
}

// LoadNodeConfig reads and unmarshals the node config file at path, applying
// environment interpolation before decode and defaults before that.
func LoadNodeConfig(path string) (NodeConfig, error) {
	cfg := DefaultNodeConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		return NodeConfig{}, fmt.Errorf("reading node config %s: %w", path, err)
	}

	interpolated := interpolateEnv(string(raw))
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return NodeConfig{}, fmt.Errorf("parsing node config %s: %w", path, err)
	}

	if errs := ValidateNodeConfig(cfg); errs.HasErrors() {
		return NodeConfig{}, errs
	}

	logging.Info("nodeconfig", "loaded node config from %s", path)
	return cfg, nil
}

// LoadTransportFile reads and unmarshals one transport config file
// referenced from NodeConfig.Transports.
func LoadTransportFile(path string) ([]TransportRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading transport config %s: %w", path, err)
	}

	var file TransportFile
	if err := yaml.Unmarshal([]byte(interpolateEnv(string(raw))), &file); err != nil {
		return nil, fmt.Errorf("parsing transport config %s: %w", path, err)
	}

	var errs ValidationErrors
	for _, r := range file.Transports {
		errs = append(errs, ValidateTransportRecord(r)...)
	}
	if errs.HasErrors() {
		return nil, fmt.Errorf("transport config %s: %w", path, errs)
	}

	return file.Transports, nil
}

// LoadAllTransports loads every transport file named in cfg.Transports,
// continuing past a single file's failure and returning every error
// collected (the loader's collect-don't-abort idiom applied across files).
func LoadAllTransports(cfg NodeConfig) ([]TransportRecord, error) {
	var all []TransportRecord
	var errs ValidationErrors
	for _, path := range cfg.Transports {
		records, err := LoadTransportFile(path)
		if err != nil {
			errs.Add(path, err.Error())
			continue
		}
		all = append(all, records...)
	}
	if errs.HasErrors() {
		return all, errs
	}
	return all, nil
}
