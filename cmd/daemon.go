/*
Copyright © 2025 Travis Lyons travis.lyons@gmail.com

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trly/systemd-shim/internal/activity"
	"github.com/trly/systemd-shim/internal/cgmanager"
	"github.com/trly/systemd-shim/internal/ntp"
	"github.com/trly/systemd-shim/internal/power"
	"github.com/trly/systemd-shim/internal/shim"
	"github.com/trly/systemd-shim/internal/unit"
)

// DaemonOptions holds daemon command options.
type DaemonOptions struct{}

// DaemonDeps holds daemon dependencies.
type DaemonDeps struct {
	CommonDeps
	Connect        func(gate *shim.ReplyGate) (BusConn, error)
	Cgroups        CgroupManager
	Virt           shim.Virtualization
	RunningSystemd func() bool
}

// DaemonCommand serves org.freedesktop.systemd1 until it has been idle for
// the configured window.
type DaemonCommand struct{}

// NewDaemonCommand creates a new DaemonCommand.
func NewDaemonCommand() *DaemonCommand {
	return &DaemonCommand{}
}

// getApp retrieves the App from the command context.
func (c *DaemonCommand) getApp(cmd *cobra.Command) *App {
	return cmd.Context().Value(appContextKey).(*App)
}

// GetCobraCommand returns the cobra command for running the daemon.
func (c *DaemonCommand) GetCobraCommand() *cobra.Command {
	var opts DaemonOptions

	return &cobra.Command{
		Use:   "daemon",
		Short: "Serve the systemd manager interface on the system bus",
		Long: `Serve the org.freedesktop.systemd1 manager interface on the system bus.

The daemon is normally started by D-Bus activation and exits by itself once no
request has arrived for the configured idle timeout. Running systemd-shim
without a subcommand is the same as running this command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.execute(cmd, opts)
		},
		SilenceUsage: true,
	}
}

func (c *DaemonCommand) execute(cmd *cobra.Command, opts DaemonOptions) error {
	app := c.getApp(cmd)
	deps := c.buildDeps(app)
	defer func() { _ = deps.Cgroups.Close() }()
	return c.Run(cmd.Context(), app, opts, deps)
}

// buildDeps creates production dependencies for the daemon command.
func (c *DaemonCommand) buildDeps(app *App) DaemonDeps {
	return DaemonDeps{
		CommonDeps:     NewRootDeps(app),
		Connect:        connectBus,
		Cgroups:        cgmanager.New(app.Config.CgmanagerAddress, app.Logger),
		Virt:           newDetector(),
		RunningSystemd: runningSystemd,
	}
}

// Run executes the daemon with injected dependencies. It returns nil when
// the daemon exits after being idle or ctx is cancelled.
func (c *DaemonCommand) Run(ctx context.Context, app *App, _ DaemonOptions, deps DaemonDeps) error {
	cfg := app.Config
	logger := deps.Logger

	if deps.RunningSystemd != nil && deps.RunningSystemd() {
		logger.Warn("systemd is the running service manager; requests will be answered by the shim anyway")
	}

	deps.Cgroups.MoveSelf(ctx)

	powerCtl := power.NewController(cfg, app.Runner, deps.Clock, logger)
	tracker := activity.New(deps.Clock, cfg.IdleTimeout, powerCtl.InShutdown)
	loop := shim.NewLoop(tracker, logger)

	resolver := unit.NewResolver(unit.Backends{
		Cgroups:  deps.Cgroups,
		Registry: app.Registry,
		NTP:      ntp.NewController(cfg.NTP, app.Runner, logger),
		Power:    powerCtl,
	}, logger)

	gate := shim.NewJobGate()
	conn, err := deps.Connect(gate)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	manager := shim.NewManager(shim.Deps{
		Loop:     loop,
		Resolver: resolver,
		Virt:     deps.Virt,
		Units:    app.Registry,
		Bus:      conn,
		Gate:     gate,
		Logger:   logger,
	})
	if err := shim.Export(conn, manager); err != nil {
		return err
	}
	if err := shim.ClaimName(conn, cfg.BusName); err != nil {
		return fmt.Errorf("failed to acquire bus name: %w", err)
	}

	logger.Info("Serving on the system bus", "name", cfg.BusName, "idle_timeout", cfg.IdleTimeout)
	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
