package nodeconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestInterpolateEnvSubstitutesVar(t *testing.T) {
	t.Setenv("HSTP_TEST_VAR", "resolved")
	out := interpolateEnv("value: ${HSTP_TEST_VAR}")
	assert.Equal(t, "value: resolved", out)
}

func TestInterpolateEnvUsesDefaultWhenUnset(t *testing.T) {
	os.Unsetenv("HSTP_TEST_MISSING_VAR")
	out := interpolateEnv("value: ${HSTP_TEST_MISSING_VAR:-fallback}")
	assert.Equal(t, "value: fallback", out)
}

func TestLoadNodeConfigAppliesDefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
nodeId: node-1
name: test node
logging:
  level: debug
`)

	cfg, err := LoadNodeConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "node-1", cfg.NodeID)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 9090, cfg.Metrics.Port) // default retained
}

func TestLoadNodeConfigRejectsMissingNodeID(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "name: test node\n")

	_, err := LoadNodeConfig(path)
	require.Error(t, err)
}

func TestLoadTransportFileValidatesRecords(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "transports.yaml", `
transports:
  - name: local-http
    type: http
    enabled: true
    config:
      baseUrl: http://localhost:8080
`)

	records, err := LoadTransportFile(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "local-http", records[0].Name)
}

func TestLoadTransportFileRejectsMissingType(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "transports.yaml", `
transports:
  - name: broken
`)

	_, err := LoadTransportFile(path)
	require.Error(t, err)
}

func TestLoadAllTransportsCollectsEveryFileError(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.yaml", "transports:\n  - name: a\n    type: http\n")
	bad := writeFile(t, dir, "bad.yaml", "transports:\n  - name: b\n")

	cfg := NodeConfig{Transports: []string{good, bad}}
	records, err := LoadAllTransports(cfg)
	require.Error(t, err)
	assert.Len(t, records, 1)
}
