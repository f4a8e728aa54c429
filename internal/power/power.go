// Package power performs shutdown, reboot, suspend and hibernate requests.
package power

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/trly/systemd-shim/internal/config"
	"github.com/trly/systemd-shim/internal/execx"
	"github.com/trly/systemd-shim/internal/log"
)

// Action is a power transition.
type Action int

// Supported actions.
const (
	Off Action = iota
	Reboot
	Suspend
	Hibernate
)

// SuspendDebounce is the window in which a repeated suspend request is ignored.
const SuspendDebounce = time.Second

func (a Action) String() string {
	switch a {
	case Off:
		return "poweroff"
	case Reboot:
		return "reboot"
	case Suspend:
		return "suspend"
	case Hibernate:
		return "hibernate"
	default:
		return "unknown"
	}
}

// Terminal reports whether the action ends the running system.
func (a Action) Terminal() bool {
	return a == Off || a == Reboot
}

// kernelState is the value written to the power state file when no
// userspace tool is installed.
func (a Action) kernelState() string {
	if a == Hibernate {
		return "disk"
	}
	return "mem"
}

// Controller carries the state shared by all power requests: whether a
// shutdown is underway and when the last suspend happened. It is not safe
// for concurrent use.
type Controller struct {
	cfg    *config.Settings
	runner execx.Runner
	clock  clock.Clock
	logger log.Logger

	inShutdown   bool
	lastSuspend  time.Time
	hasSuspended bool
}

// NewController creates a Controller.
func NewController(cfg *config.Settings, runner execx.Runner, clk clock.Clock, logger log.Logger) *Controller {
	return &Controller{
		cfg:    cfg,
		runner: runner,
		clock:  clk,
		logger: logger,
	}
}

// InShutdown reports whether a poweroff or reboot has been started.
// Once set it never clears.
func (c *Controller) InShutdown() bool {
	return c.inShutdown
}

// Start carries out action. Failures are logged; the request itself never fails.
func (c *Controller) Start(ctx context.Context, action Action) {
	if action.Terminal() {
		c.shutdown(ctx, action)
		return
	}
	c.sleep(ctx, action)
}

func (c *Controller) shutdown(ctx context.Context, action Action) {
	c.inShutdown = true

	if err := c.writePidFile(); err != nil {
		c.logger.Warn("Failed to write shutdown pid file", "path", c.cfg.ShutdownPidFile, "error", err)
	}

	c.run(ctx, action)
}

func (c *Controller) sleep(ctx context.Context, action Action) {
	if c.inShutdown {
		c.logger.Debug("Ignoring power request during shutdown", "action", action)
		return
	}

	if action == Suspend && c.hasSuspended && c.clock.Since(c.lastSuspend) < SuspendDebounce {
		c.logger.Debug("Ignoring repeated suspend request", "since", c.clock.Since(c.lastSuspend))
		return
	}

	if execx.IsExecutable(c.command(action)) {
		c.run(ctx, action)
	} else if err := c.writeKernelState(action); err != nil {
		c.logger.Warn("Failed to write power state", "path", c.cfg.PowerStatePath, "action", action, "error", err)
		return
	}

	// Taken after the action so the time spent asleep counts toward the window.
	if action == Suspend {
		c.lastSuspend = c.clock.Now()
		c.hasSuspended = true
	}
}

func (c *Controller) command(action Action) string {
	switch action {
	case Off:
		return c.cfg.PowerCommands.Poweroff
	case Reboot:
		return c.cfg.PowerCommands.Reboot
	case Suspend:
		return c.cfg.PowerCommands.Suspend
	case Hibernate:
		return c.cfg.PowerCommands.Hibernate
	default:
		return ""
	}
}

func (c *Controller) run(ctx context.Context, action Action) {
	name := c.command(action)
	c.logger.Info("Running power command", "action", action, "command", name)

	out, err := c.runner.CombinedOutput(ctx, name)
	if err != nil {
		c.logger.Warn("Power command failed", "action", action, "command", name, "exitCode", execx.ExitCode(err), "output", string(out))
	}
}

// writePidFile records our pid so that the shutdown scripts spare us when
// they signal all remaining processes.
func (c *Controller) writePidFile() error {
	path := c.cfg.ShutdownPidFile
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}

func (c *Controller) writeKernelState(action Action) error {
	f, err := os.OpenFile(c.cfg.PowerStatePath, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	_, werr := f.WriteString(action.kernelState())
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("failed to write %q: %w", action.kernelState(), werr)
	}
	return nil
}

// ErrUnknownTarget is returned by ParseTarget for names that are not power targets.
var ErrUnknownTarget = errors.New("not a power target")

// ParseTarget maps a target unit name to its action.
func ParseTarget(name string) (Action, error) {
	switch name {
	case "suspend.target":
		return Suspend, nil
	case "hibernate.target":
		return Hibernate, nil
	case "reboot.target":
		return Reboot, nil
	case "shutdown.target", "poweroff.target":
		return Off, nil
	default:
		return 0, ErrUnknownTarget
	}
}
