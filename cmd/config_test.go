package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/trly/systemd-shim/internal/config"
	"github.com/trly/systemd-shim/internal/testutil"
)

func TestConfigCommand_Subcommands(t *testing.T) {
	cmd := NewConfigCommand().GetCobraCommand()

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"show", "init"}, names)
}

func TestConfigShowCommand(t *testing.T) {
	app := NewAppBuilder(t).Build(t)
	app.Config.IdleTimeout = 30 * time.Second

	cmd := NewConfigShowCommand().GetCobraCommand()
	SetupCommandContext(cmd, app)

	AssertCommandOutput(t, cmd, []string{},
		"busName: org.freedesktop.systemd1",
		"idleTimeout: 30s",
		"statePath: "+app.Config.StatePath,
	)
}

func newInitDeps(t *testing.T) (InitDeps, *bytes.Buffer) {
	var out bytes.Buffer
	return InitDeps{
		CommonDeps: CommonDeps{Logger: testutil.NewTestLogger(t)},
		Stat:       os.Stat,
		MkdirAll:   os.MkdirAll,
		WriteFile:  os.WriteFile,
		Out:        &out,
	}, &out
}

func TestInitCommand_Run(t *testing.T) {
	tests := []struct {
		name        string
		opts        func(dir string) InitOptions
		setup       func(t *testing.T, file string)
		expectError bool
		errorMsg    string
		validate    func(t *testing.T, file string)
	}{
		{
			name: "creates config file with defaults",
			opts: func(dir string) InitOptions {
				return InitOptions{Path: filepath.Join(dir, "etc", "systemd-shim", "config.yaml")}
			},
			setup: func(_ *testing.T, _ string) {},
			validate: func(t *testing.T, file string) {
				data, err := os.ReadFile(file) // #nosec G304
				require.NoError(t, err)

				var cfg config.Settings
				require.NoError(t, yaml.Unmarshal(data, &cfg))
				assert.Equal(t, *config.Defaults(), cfg)
			},
		},
		{
			name: "fails when config file exists and force is false",
			opts: func(dir string) InitOptions {
				return InitOptions{Path: filepath.Join(dir, "config.yaml")}
			},
			setup: func(t *testing.T, file string) {
				require.NoError(t, os.WriteFile(file, []byte("existing"), 0600))
			},
			expectError: true,
			errorMsg:    "configuration file already exists",
			validate: func(t *testing.T, file string) {
				data, err := os.ReadFile(file) // #nosec G304
				require.NoError(t, err)
				assert.Equal(t, "existing", string(data))
			},
		},
		{
			name: "overwrites config file when force is true",
			opts: func(dir string) InitOptions {
				return InitOptions{Path: filepath.Join(dir, "config.yaml"), Force: true}
			},
			setup: func(t *testing.T, file string) {
				require.NoError(t, os.WriteFile(file, []byte("existing"), 0600))
			},
			validate: func(t *testing.T, file string) {
				data, err := os.ReadFile(file) // #nosec G304
				require.NoError(t, err)
				assert.Contains(t, string(data), "busName: org.freedesktop.systemd1")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts(t.TempDir())
			tt.setup(t, opts.Path)
			deps, out := newInitDeps(t)

			err := NewInitCommand().Run(nil, opts, deps)
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				require.NoError(t, err)
				assert.Contains(t, out.String(), "Configuration file created at "+opts.Path)
			}
			tt.validate(t, opts.Path)
		})
	}
}

func TestInitCommand_WriteFailure(t *testing.T) {
	deps, _ := newInitDeps(t)
	deps.WriteFile = func(string, []byte, os.FileMode) error {
		return errors.New("read-only file system")
	}

	err := NewInitCommand().Run(nil, InitOptions{Path: filepath.Join(t.TempDir(), "config.yaml")}, deps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write config file")
}
