package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCommandHasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["version"])
	assert.True(t, names["start"])
}

func TestSetVersionUpdatesRootCmd(t *testing.T) {
	original := rootCmd.Version
	defer func() { rootCmd.Version = original }()

	SetVersion("9.9.9")
	assert.Equal(t, "9.9.9", rootCmd.Version)
}
