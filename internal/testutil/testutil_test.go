package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTestLogger(t *testing.T) {
	logger := NewTestLogger(t)
	assert.NotNil(t, logger)

	// Test that we can call logger methods without panic
	logger.Debug("test debug message")
	logger.Info("test info message")
	logger.Warn("test warn message")
	logger.Error("test error message")
}

func TestRecordingLogger(t *testing.T) {
	logger := NewRecordingLogger()

	logger.Warn("cgmanager method call failed", "method", "Chown")
	logger.Debug("ignored")

	assert.Len(t, logger.Entries(), 2)
	assert.True(t, logger.Contains("warn", "Chown"))
	assert.False(t, logger.Contains("warn", "ignored"))
	assert.Equal(t, []string{"ignored"}, logger.Messages("debug"))
}

func TestNewTestConfig(t *testing.T) {
	t.Run("default config", func(t *testing.T) {
		provider := NewTestConfig(t)
		require.NotNil(t, provider)

		cfg := provider.GetConfig()
		require.NotNil(t, cfg)
		assert.True(t, cfg.Verbose)
		assert.True(t, filepath.IsAbs(cfg.StatePath))
		assert.NotEqual(t, "/sbin/poweroff", cfg.PowerCommands.Poweroff)
	})

	t.Run("with options", func(t *testing.T) {
		provider := NewTestConfig(t, WithVerbose(false), WithStatePath("/tmp/custom-state"))

		cfg := provider.GetConfig()
		assert.False(t, cfg.Verbose)
		assert.Equal(t, "/tmp/custom-state", cfg.StatePath)
	})
}
