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
	"fmt"
	"os"
	"path"

	"github.com/spf13/cobra"
)

// ReleaseAgentOptions holds release-agent command options.
type ReleaseAgentOptions struct {
	CgroupPath string
}

// ReleaseAgentDeps holds release-agent dependencies.
type ReleaseAgentDeps struct {
	CommonDeps
	Dial         func(ctx context.Context) (UnitStopper, error)
	IsExecutable func(path string) bool
	Exec         ExecFunc
}

// ReleaseAgentCommand is run by the kernel when a cgroup becomes empty.
type ReleaseAgentCommand struct{}

// NewReleaseAgentCommand creates a new ReleaseAgentCommand.
func NewReleaseAgentCommand() *ReleaseAgentCommand {
	return &ReleaseAgentCommand{}
}

// getApp retrieves the App from the command context.
func (c *ReleaseAgentCommand) getApp(cmd *cobra.Command) *App {
	return cmd.Context().Value(appContextKey).(*App)
}

// GetCobraCommand returns the cobra command for the cgroup release agent.
func (c *ReleaseAgentCommand) GetCobraCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "release-agent <cgroup-path>",
		Short: "Stop the unit owning an emptied cgroup",
		Long: `Stop the unit owning an emptied cgroup.

The unit is named by the last element of the cgroup path. After the stop
request has been sent, cgmanager's own release agent is run with the same
argument if it is installed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := c.getApp(cmd)
			deps := c.buildDeps(app)
			return c.Run(cmd.Context(), app, ReleaseAgentOptions{CgroupPath: args[0]}, deps)
		},
		SilenceUsage: true,
	}
}

// buildDeps creates production dependencies for the release-agent command.
func (c *ReleaseAgentCommand) buildDeps(app *App) ReleaseAgentDeps {
	return ReleaseAgentDeps{
		CommonDeps:   NewRootDeps(app),
		Dial:         dialManager,
		IsExecutable: isExecutable,
		Exec:         execProcess,
	}
}

// Run executes the release agent with injected dependencies. On success
// with an agent installed, Run does not return.
func (c *ReleaseAgentCommand) Run(ctx context.Context, app *App, opts ReleaseAgentOptions, deps ReleaseAgentDeps) error {
	logger := deps.Logger
	name := path.Base(opts.CgroupPath)

	conn, err := deps.Dial(ctx)
	if err != nil {
		return fmt.Errorf("cannot connect to system bus: %w", err)
	}
	logger.Debug("Sending StopUnit", "unit", name)
	if _, err := conn.StopUnitContext(ctx, name, "replace", nil); err != nil {
		logger.Warn("StopUnit call failed", "unit", name, "error", err)
	}
	conn.Close()

	agent := app.Config.ReleaseAgent
	if agent == "" || !deps.IsExecutable(agent) {
		logger.Debug("No cgmanager release agent", "path", agent)
		return nil
	}

	logger.Debug("Calling cgmanager release agent", "path", agent)
	if err := deps.Exec(agent, []string{agent, opts.CgroupPath}, os.Environ()); err != nil {
		return fmt.Errorf("failed to run %s: %w", agent, err)
	}
	return nil
}
