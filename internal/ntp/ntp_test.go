package ntp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trly/systemd-shim/internal/testutil"
	"github.com/trly/systemd-shim/internal/testutil/fakerunner"
)

type host struct {
	ctrl   *Controller
	runner *fakerunner.Runner
	logger *testutil.RecordingLogger
	t      *testing.T
}

func newHost(t *testing.T) *host {
	t.Helper()
	cfg := testutil.NewTestConfig(t).GetConfig()
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.NTP.NtpdateEnabled), 0o755))

	runner := fakerunner.New()
	logger := testutil.NewRecordingLogger()
	return &host{
		ctrl:   NewController(cfg.NTP, runner, logger),
		runner: runner,
		logger: logger,
		t:      t,
	}
}

func (h *host) touch(path string) {
	h.t.Helper()
	require.NoError(h.t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))
}

func TestAvailability(t *testing.T) {
	h := newHost(t)
	assert.False(t, h.ctrl.Available())

	h.touch(h.ctrl.paths.NtpdateAvailable)
	assert.True(t, h.ctrl.NtpdateAvailable())
	assert.False(t, h.ctrl.NtpdAvailable())
	assert.True(t, h.ctrl.Available())

	h2 := newHost(t)
	h2.touch(h2.ctrl.paths.NtpdAvailable)
	assert.True(t, h2.ctrl.Available())
}

func TestEnabled(t *testing.T) {
	ctx := context.Background()

	t.Run("ntpdate hook present", func(t *testing.T) {
		h := newHost(t)
		h.touch(h.ctrl.paths.NtpdateAvailable)
		h.touch(h.ctrl.paths.NtpdateEnabled)
		assert.True(t, h.ctrl.Enabled(ctx))
		assert.Empty(t, h.runner.GetCalls(), "ntpd is not probed without the daemon installed")
	})

	t.Run("stale hook without ntpdate", func(t *testing.T) {
		h := newHost(t)
		h.touch(h.ctrl.paths.NtpdAvailable)
		h.touch(h.ctrl.paths.NtpdateEnabled)
		h.runner.SetError("service", []string{"ntp", "status"}, errors.New("exit status 3"))
		assert.False(t, h.ctrl.Enabled(ctx))
	})

	t.Run("ntpd running", func(t *testing.T) {
		h := newHost(t)
		h.touch(h.ctrl.paths.NtpdAvailable)
		assert.True(t, h.ctrl.Enabled(ctx))
		assert.Equal(t, []string{"service ntp status"}, h.runner.CommandLines())
	})

	t.Run("ntpd stopped", func(t *testing.T) {
		h := newHost(t)
		h.touch(h.ctrl.paths.NtpdAvailable)
		h.runner.SetError("service", []string{"ntp", "status"}, errors.New("exit status 3"))
		assert.False(t, h.ctrl.Enabled(ctx))
	})

	t.Run("nothing installed", func(t *testing.T) {
		h := newHost(t)
		assert.False(t, h.ctrl.Enabled(ctx))
	})
}

func TestSetEnabledNtpdate(t *testing.T) {
	ctx := context.Background()
	h := newHost(t)
	h.touch(h.ctrl.paths.NtpdateAvailable)
	h.touch(h.ctrl.paths.NtpdateDisabled)

	h.ctrl.SetEnabled(ctx, true)

	assert.FileExists(t, h.ctrl.paths.NtpdateEnabled)
	assert.NoFileExists(t, h.ctrl.paths.NtpdateDisabled)
	assert.Equal(t, []string{h.ctrl.paths.NtpdateEnabled}, h.runner.CommandLines(), "enabling runs the hook once")

	// Already enabled: nothing to do.
	h.runner.Reset()
	h.ctrl.SetEnabled(ctx, true)
	assert.Empty(t, h.runner.GetCalls())

	h.ctrl.SetEnabled(ctx, false)
	assert.NoFileExists(t, h.ctrl.paths.NtpdateEnabled)
	assert.FileExists(t, h.ctrl.paths.NtpdateDisabled)
	assert.Empty(t, h.runner.GetCalls(), "disabling does not run the hook")
}

func TestSetEnabledNtpdateMissingHook(t *testing.T) {
	h := newHost(t)
	h.touch(h.ctrl.paths.NtpdateAvailable)

	h.ctrl.SetEnabled(context.Background(), true)

	assert.True(t, h.logger.Contains("warn", "Failed to toggle ntpdate hook"))
	assert.Empty(t, h.runner.GetCalls())
}

func TestSetEnabledNtpd(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		enabled bool
		want    []string
	}{
		{name: "enable", enabled: true, want: []string{"update-rc.d ntp enable", "service ntp restart"}},
		{name: "disable", enabled: false, want: []string{"update-rc.d ntp disable", "service ntp stop"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHost(t)
			h.touch(h.ctrl.paths.NtpdAvailable)

			h.ctrl.SetEnabled(ctx, tt.enabled)

			assert.Equal(t, tt.want, h.runner.CommandLines())
		})
	}
}

func TestSetEnabledCommandFailureIsLogged(t *testing.T) {
	h := newHost(t)
	h.touch(h.ctrl.paths.NtpdAvailable)
	h.runner.SetError("update-rc.d", []string{"ntp", "enable"}, errors.New("boom"))

	h.ctrl.SetEnabled(context.Background(), true)

	assert.Equal(t, []string{"update-rc.d ntp enable", "service ntp restart"}, h.runner.CommandLines())
	assert.True(t, h.logger.Contains("warn", "update-rc.d"))
}
