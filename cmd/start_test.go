package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hstp/node/pkg/logging"
)

func TestNewStartCmdRegistersFlags(t *testing.T) {
	c := newStartCmd()
	assert.NotNil(t, c.Flags().Lookup("config"))
	assert.NotNil(t, c.Flags().Lookup("watch"))
	assert.NotNil(t, c.Flags().Lookup("watch-dir"))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, logging.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, logging.LevelWarn, parseLogLevel("warn"))
	assert.Equal(t, logging.LevelError, parseLogLevel("error"))
	assert.Equal(t, logging.LevelInfo, parseLogLevel("info"))
	assert.Equal(t, logging.LevelInfo, parseLogLevel(""))
}
