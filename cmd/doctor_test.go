package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trly/systemd-shim/internal/testutil"
)

// healthyDoctorDeps returns deps under which every check passes.
func healthyDoctorDeps(t *testing.T, app *App) (DoctorDeps, *bytes.Buffer) {
	t.Helper()
	ntpd := app.Config.NTP.NtpdAvailable
	require.NoError(t, os.WriteFile(ntpd, nil, 0755))

	var out bytes.Buffer
	return DoctorDeps{
		CommonDeps:      CommonDeps{Logger: testutil.NewTestLogger(t)},
		Cgroups:         &MockCgroups{},
		Virt:            staticVirt(""),
		RunningSystemd:  func() bool { return false },
		ViperConfigFile: func() string { return "" },
		IsExecutable:    func(string) bool { return true },
		Out:             &out,
	}, &out
}

func TestDoctorCommand_AllChecksPass(t *testing.T) {
	app := NewAppBuilder(t).Build(t)
	deps, out := healthyDoctorDeps(t, app)

	err := NewDoctorCommand().Run(context.Background(), app, DoctorOptions{Output: "text"}, deps)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "✓ Service Manager: systemd is not running")
	assert.Contains(t, text, "✓ NTP: ntpd is installed")
	assert.Contains(t, text, "✓ Virtualization: none")
	assert.Contains(t, text, "All checks passed")
}

func TestDoctorCommand_ReportsFailures(t *testing.T) {
	app := NewAppBuilder(t).Build(t)
	app.Config.Verbose = false
	deps, out := healthyDoctorDeps(t, app)
	deps.RunningSystemd = func() bool { return true }
	deps.Cgroups = &MockCgroups{Unavailable: true}
	deps.IsExecutable = func(path string) bool {
		return filepath.Base(path) != "pm-hibernate"
	}

	err := NewDoctorCommand().Run(context.Background(), app, DoctorOptions{Output: "text"}, deps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "doctor found 3 issues")

	text := out.String()
	assert.Contains(t, text, "✗ Service Manager: systemd is the running service manager")
	assert.Contains(t, text, "✗ cgmanager: cgmanager not reachable")
	assert.Contains(t, text, "✗ Power Commands: Not executable: "+app.Config.PowerCommands.Hibernate)
	assert.Contains(t, text, "3 checks failed")
	assert.NotContains(t, text, "NTP")
}

func TestDoctorCommand_StructuredOutput(t *testing.T) {
	app := NewAppBuilder(t).Build(t)
	deps, out := healthyDoctorDeps(t, app)
	require.NoError(t, os.Remove(app.Config.NTP.NtpdAvailable))
	deps.Virt = staticVirt("kvm")

	err := NewDoctorCommand().Run(context.Background(), app, DoctorOptions{Output: "json"}, deps)
	require.Error(t, err)

	var got HealthCheckOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "failed", got.Overall)
	assert.Equal(t, map[string]int{"total": 7, "passed": 6, "failed": 1}, got.Summary)

	byName := map[string]CheckResultStructured{}
	for _, c := range got.Checks {
		byName[c.Name] = c
	}
	assert.Equal(t, "failed", byName["NTP"].Status)
	assert.NotEmpty(t, byName["NTP"].Suggestions)
	assert.Equal(t, "kvm", byName["Virtualization"].Message)
}

func TestDoctorCommand_StateDirectoryMissing(t *testing.T) {
	app := NewAppBuilder(t).Build(t)
	deps, out := healthyDoctorDeps(t, app)
	app.Config.StatePath = filepath.Join(t.TempDir(), "missing", "state")

	err := NewDoctorCommand().Run(context.Background(), app, DoctorOptions{Output: "text"}, deps)
	require.Error(t, err)
	assert.Contains(t, out.String(), "✗ State File")
	assert.Contains(t, out.String(), "mkdir -p")
}

func TestDoctorCommand_Help(t *testing.T) {
	cmd := NewDoctorCommand().GetCobraCommand()
	AssertCommandOutput(t, cmd, []string{"--help"},
		"Check system health and configuration",
		"cgmanager connectivity",
	)
}
