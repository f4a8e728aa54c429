package cmd

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trly/systemd-shim/internal/testutil"
)

func TestRootCommand_Subcommands(t *testing.T) {
	root := NewRootCommand(&MockProvider{}).GetCobraCommand()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"daemon", "units", "release-agent", "version"})
	assert.NotNil(t, root.RunE, "running without a subcommand starts the daemon")
}

func TestRootCommand_FlagsOverrideConfig(t *testing.T) {
	cfg := testutil.NewTestConfig(t).GetConfig()
	provider := &MockProvider{cfg: cfg}
	statePath := filepath.Join(t.TempDir(), "other-state")

	root := NewRootCommand(provider).GetCobraCommand()
	output, err := ExecuteCommandWithCapture(t, root, []string{
		"units", "--output", "json",
		"--state-path", statePath,
		"--idle-timeout", "45s",
		"--config", "/etc/systemd-shim/alt.yaml",
	})
	require.NoError(t, err)

	var got UnitsOutput
	require.NoError(t, json.Unmarshal([]byte(output[strings.Index(output, "{"):]), &got))
	assert.Equal(t, statePath, got.StatePath)
	assert.Empty(t, got.Units)

	assert.Equal(t, "45s", cfg.IdleTimeout.String())
	assert.Equal(t, "/etc/systemd-shim/alt.yaml", provider.path)
}

func TestRootCommand_RejectsNonPositiveIdleTimeout(t *testing.T) {
	provider := &MockProvider{cfg: testutil.NewTestConfig(t).GetConfig()}

	root := NewRootCommand(provider).GetCobraCommand()
	AssertCommandFailure(t, root, []string{"units", "--idle-timeout", "0s"}, "idle timeout must be positive")
}

func TestRootCommand_ConfigError(t *testing.T) {
	provider := &MockProvider{cfg: testutil.NewTestConfig(t).GetConfig(), InitErr: errMock}

	root := NewRootCommand(provider).GetCobraCommand()
	err := AssertCommandFailure(t, root, []string{"units"}, "failed to load configuration")
	assert.ErrorIs(t, err, errMock)
}
