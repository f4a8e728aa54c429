// Package ntp toggles network time synchronization on hosts that use the
// ntpdate if-up.d hook, the ntpd init script, or both.
package ntp

import (
	"context"
	"os"

	"github.com/trly/systemd-shim/internal/config"
	"github.com/trly/systemd-shim/internal/execx"
	"github.com/trly/systemd-shim/internal/log"
)

const serviceName = "ntp"

// Controller enables and disables the NTP mechanisms present on the host.
// Every failure is logged and swallowed.
type Controller struct {
	paths  config.NTP
	runner execx.Runner
	logger log.Logger
}

// NewController creates a Controller for the markers and tools in paths.
func NewController(paths config.NTP, runner execx.Runner, logger log.Logger) *Controller {
	return &Controller{
		paths:  paths,
		runner: runner,
		logger: logger,
	}
}

// NtpdateAvailable reports whether ntpdate is installed.
func (c *Controller) NtpdateAvailable() bool {
	return execx.Exists(c.paths.NtpdateAvailable)
}

// NtpdAvailable reports whether ntpd is installed.
func (c *Controller) NtpdAvailable() bool {
	return execx.Exists(c.paths.NtpdAvailable)
}

// Available reports whether at least one mechanism is installed.
func (c *Controller) Available() bool {
	return c.NtpdateAvailable() || c.NtpdAvailable()
}

// Enabled reports whether either mechanism is currently turned on.
func (c *Controller) Enabled(ctx context.Context) bool {
	if c.ntpdateEnabled() {
		return true
	}
	return c.ntpdActive(ctx)
}

// SetEnabled turns every available mechanism on or off.
func (c *Controller) SetEnabled(ctx context.Context, enabled bool) {
	if c.NtpdateAvailable() {
		c.setNtpdate(ctx, enabled)
	}
	if c.NtpdAvailable() {
		c.setNtpd(ctx, enabled)
	}
}

// ntpdateEnabled ignores a hook left behind by an uninstalled ntpdate.
func (c *Controller) ntpdateEnabled() bool {
	return c.NtpdateAvailable() && execx.Exists(c.paths.NtpdateEnabled)
}

func (c *Controller) ntpdActive(ctx context.Context) bool {
	if !c.NtpdAvailable() {
		return false
	}
	_, err := c.runner.CombinedOutput(ctx, c.paths.ServiceCommand, serviceName, "status")
	return err == nil
}

func (c *Controller) setNtpdate(ctx context.Context, enabled bool) {
	if c.ntpdateEnabled() == enabled {
		return
	}

	from, to := c.paths.NtpdateDisabled, c.paths.NtpdateEnabled
	if !enabled {
		from, to = to, from
	}
	if err := os.Rename(from, to); err != nil {
		c.logger.Warn("Failed to toggle ntpdate hook", "from", from, "to", to, "error", err)
		return
	}

	if enabled {
		if out, err := c.runner.CombinedOutput(ctx, c.paths.NtpdateEnabled); err != nil {
			c.logger.Warn("ntpdate hook failed", "error", err, "output", string(out))
		}
	}
}

func (c *Controller) setNtpd(ctx context.Context, enabled bool) {
	rcAction, serviceAction := "disable", "stop"
	if enabled {
		rcAction, serviceAction = "enable", "restart"
	}

	c.run(ctx, c.paths.UpdateRcdCommand, serviceName, rcAction)
	c.run(ctx, c.paths.ServiceCommand, serviceName, serviceAction)
}

func (c *Controller) run(ctx context.Context, name string, args ...string) {
	out, err := c.runner.CombinedOutput(ctx, name, args...)
	if err != nil {
		c.logger.Warn("Command failed", "command", name, "args", args, "exitCode", execx.ExitCode(err), "output", string(out))
		return
	}
	c.logger.Debug("Command succeeded", "command", name, "args", args)
}
