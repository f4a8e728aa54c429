package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
	}{
		{
			name:    "default logging level",
			verbose: false,
		},
		{
			name:    "verbose logging level",
			verbose: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(tt.verbose)

			require.NotNil(t, logger)
			assert.IsType(t, &SlogAdapter{}, logger)
		})
	}
}

func TestNewLoggerToLevels(t *testing.T) {
	t.Run("warn and above by default", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLoggerTo(&buf, false, false)

		logger.Debug("hidden debug")
		logger.Info("hidden info")
		logger.Warn("visible warning", "unit", "foo.slice")

		out := buf.String()
		assert.NotContains(t, out, "hidden")
		assert.Contains(t, out, "visible warning")
		assert.Contains(t, out, "unit=foo.slice")
	})

	t.Run("debug when verbose", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLoggerTo(&buf, true, false)

		logger.Debug("debug line")
		assert.Contains(t, buf.String(), "debug line")
	})

	t.Run("colored handler still writes records", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLoggerTo(&buf, false, true)

		logger.Error("boom")
		assert.Contains(t, buf.String(), "boom")
	})
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, false, false).(*SlogAdapter)

	logger.With("component", "cgmanager").Warn("call failed")
	assert.Contains(t, buf.String(), "component=cgmanager")
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().Error("discarded")
	})
}
