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
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/trly/systemd-shim/internal/cgmanager"
	"github.com/trly/systemd-shim/internal/ntp"
	"github.com/trly/systemd-shim/internal/shim"
)

// DoctorOptions holds doctor command options.
type DoctorOptions struct {
	Output string
}

// DoctorDeps holds doctor dependencies.
type DoctorDeps struct {
	CommonDeps
	Cgroups         CgroupProbe
	Virt            shim.Virtualization
	RunningSystemd  func() bool
	ViperConfigFile func() string
	IsExecutable    func(string) bool
	Out             io.Writer
}

// DoctorCommand represents the doctor command for systemd-shim CLI.
type DoctorCommand struct{}

// NewDoctorCommand creates a new DoctorCommand.
func NewDoctorCommand() *DoctorCommand {
	return &DoctorCommand{}
}

// getApp retrieves the App from the command context.
func (c *DoctorCommand) getApp(cmd *cobra.Command) *App {
	return cmd.Context().Value(appContextKey).(*App)
}

// CheckResult represents the result of a diagnostic check.
type CheckResult struct {
	Name        string
	Passed      bool
	Message     string
	Suggestions []string
}

// GetCobraCommand returns the cobra command for doctor operations.
func (c *DoctorCommand) GetCobraCommand() *cobra.Command {
	var opts DoctorOptions

	doctorCmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check system health and configuration",
		Long: `Check system health and configuration for systemd-shim.

The doctor command checks:
- The running service manager
- Configuration file validity
- cgmanager connectivity
- NTP and power management tools
- The state file location`,
		Args: cobra.NoArgs,
		PreRunE: func(_ *cobra.Command, _ []string) error {
			return validateOutputFormat(opts.Output)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := c.getApp(cmd)
			deps := c.buildDeps(app, cmd.OutOrStdout())
			defer func() { _ = deps.Cgroups.Close() }()
			return c.Run(cmd.Context(), app, opts, deps)
		},
		SilenceUsage: true,
	}

	doctorCmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text, json, yaml)")

	return doctorCmd
}

// buildDeps creates production dependencies for the doctor command.
func (c *DoctorCommand) buildDeps(app *App, out io.Writer) DoctorDeps {
	return DoctorDeps{
		CommonDeps:      NewRootDeps(app),
		Cgroups:         cgmanager.New(app.Config.CgmanagerAddress, app.Logger),
		Virt:            newDetector(),
		RunningSystemd:  runningSystemd,
		ViperConfigFile: func() string { return viper.GetViper().ConfigFileUsed() },
		IsExecutable:    isExecutable,
		Out:             out,
	}
}

// Run executes the doctor command with injected dependencies.
func (c *DoctorCommand) Run(ctx context.Context, app *App, opts DoctorOptions, deps DoctorDeps) error {
	results := []CheckResult{
		c.checkServiceManager(deps),
		c.checkConfiguration(deps),
		c.checkCgmanager(ctx, app, deps),
		c.checkNTP(app, deps),
		c.checkPowerCommands(app, deps),
		c.checkStateFile(app),
		c.checkVirtualization(deps),
	}

	var failureCount int
	for _, result := range results {
		if !result.Passed {
			failureCount++
		}
	}

	if opts.Output != "" && opts.Output != "text" {
		if err := c.outputStructuredResults(deps.Out, opts.Output, results, failureCount); err != nil {
			return err
		}
	} else {
		if app.Config.Verbose {
			c.displayDetailedResults(deps.Out, results)
		} else {
			c.displaySummaryResults(deps.Out, results)
		}
		if failureCount > 0 && !app.Config.Verbose {
			_, _ = fmt.Fprintf(deps.Out, "\n%d checks failed. Run with --verbose for details.\n", failureCount)
		} else if failureCount == 0 && app.Config.Verbose {
			_, _ = fmt.Fprintln(deps.Out, "\n✓ All checks passed")
		}
	}

	if failureCount > 0 {
		return fmt.Errorf("doctor found %d issues", failureCount)
	}
	return nil
}

func (c *DoctorCommand) checkServiceManager(deps DoctorDeps) CheckResult {
	if deps.RunningSystemd() {
		return CheckResult{
			Name:    "Service Manager",
			Passed:  false,
			Message: "systemd is the running service manager",
			Suggestions: []string{
				"systemd already provides org.freedesktop.systemd1 on this host",
				"Remove systemd-shim or its D-Bus activation file",
			},
		}
	}
	return CheckResult{
		Name:    "Service Manager",
		Passed:  true,
		Message: "systemd is not running",
	}
}

func (c *DoctorCommand) checkConfiguration(deps DoctorDeps) CheckResult {
	configFile := deps.ViperConfigFile()
	if configFile == "" {
		return CheckResult{
			Name:    "Configuration File",
			Passed:  true,
			Message: "No configuration file found, using defaults",
		}
	}
	if _, err := os.Stat(configFile); err != nil {
		return CheckResult{
			Name:    "Configuration File",
			Passed:  false,
			Message: fmt.Sprintf("Configuration file not accessible: %v", err),
			Suggestions: []string{
				"Check file permissions on " + configFile,
				"Run 'systemd-shim config init' to write a default file",
			},
		}
	}
	return CheckResult{
		Name:    "Configuration File",
		Passed:  true,
		Message: fmt.Sprintf("Configuration loaded from %s", configFile),
	}
}

func (c *DoctorCommand) checkCgmanager(ctx context.Context, app *App, deps DoctorDeps) CheckResult {
	if !deps.Cgroups.Available(ctx) {
		return CheckResult{
			Name:    "cgmanager",
			Passed:  false,
			Message: fmt.Sprintf("cgmanager not reachable at %s", app.Config.CgmanagerAddress),
			Suggestions: []string{
				"Install and start cgmanager",
				"Check cgmanagerAddress in the configuration",
			},
		}
	}
	return CheckResult{
		Name:    "cgmanager",
		Passed:  true,
		Message: fmt.Sprintf("cgmanager reachable at %s", app.Config.CgmanagerAddress),
	}
}

func (c *DoctorCommand) checkNTP(app *App, deps DoctorDeps) CheckResult {
	ctl := ntp.NewController(app.Config.NTP, app.Runner, deps.Logger)
	switch {
	case ctl.NtpdateAvailable():
		return CheckResult{Name: "NTP", Passed: true, Message: "ntpdate is installed"}
	case ctl.NtpdAvailable():
		return CheckResult{Name: "NTP", Passed: true, Message: "ntpd is installed"}
	}
	return CheckResult{
		Name:    "NTP",
		Passed:  false,
		Message: "Neither ntpdate nor ntpd is installed",
		Suggestions: []string{
			"Install the ntpdate or ntp package",
			fmt.Sprintf("Check the ntp paths in the configuration (%s, %s)", app.Config.NTP.NtpdateAvailable, app.Config.NTP.NtpdAvailable),
		},
	}
}

func (c *DoctorCommand) checkPowerCommands(app *App, deps DoctorDeps) CheckResult {
	cmds := app.Config.PowerCommands
	var missing []string
	for _, path := range []string{cmds.Poweroff, cmds.Reboot, cmds.Suspend, cmds.Hibernate} {
		if !deps.IsExecutable(path) {
			missing = append(missing, path)
		}
	}
	if len(missing) > 0 {
		return CheckResult{
			Name:    "Power Commands",
			Passed:  false,
			Message: fmt.Sprintf("Not executable: %s", strings.Join(missing, ", ")),
			Suggestions: []string{
				"Install pm-utils for suspend and hibernate",
				"Check powerCommands in the configuration",
			},
		}
	}
	return CheckResult{
		Name:    "Power Commands",
		Passed:  true,
		Message: "All power commands are executable",
	}
}

func (c *DoctorCommand) checkStateFile(app *App) CheckResult {
	dir := filepath.Dir(app.Config.StatePath)
	stat, err := os.Stat(dir)
	if err != nil || !stat.IsDir() {
		return CheckResult{
			Name:    "State File",
			Passed:  false,
			Message: fmt.Sprintf("Directory %s is not available", dir),
			Suggestions: []string{
				fmt.Sprintf("Create directory: mkdir -p %s", dir),
				"Check statePath in the configuration",
			},
		}
	}
	if _, err := app.Registry.ListUnits(); err != nil {
		return CheckResult{
			Name:    "State File",
			Passed:  false,
			Message: fmt.Sprintf("State file unreadable: %v", err),
			Suggestions: []string{
				fmt.Sprintf("Remove the damaged file: rm %s", app.Config.StatePath),
			},
		}
	}
	return CheckResult{
		Name:    "State File",
		Passed:  true,
		Message: fmt.Sprintf("State file at %s", app.Config.StatePath),
	}
}

func (c *DoctorCommand) checkVirtualization(deps DoctorDeps) CheckResult {
	id := deps.Virt.ID()
	if id == "" {
		id = "none"
	}
	return CheckResult{
		Name:    "Virtualization",
		Passed:  true,
		Message: id,
	}
}

// displaySummaryResults shows a brief summary of check results.
func (c *DoctorCommand) displaySummaryResults(w io.Writer, results []CheckResult) {
	var failed []CheckResult
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result)
		}
	}

	if len(failed) > 0 {
		_, _ = fmt.Fprintln(w, "Issues found:")
		for _, result := range failed {
			_, _ = fmt.Fprintf(w, "✗ %s: %s\n", result.Name, result.Message)
		}
	}
}

// displayDetailedResults shows detailed information about all checks.
func (c *DoctorCommand) displayDetailedResults(w io.Writer, results []CheckResult) {
	_, _ = fmt.Fprintln(w, "System Health Check Results:")
	_, _ = fmt.Fprintln(w, strings.Repeat("=", 40))

	for _, result := range results {
		if result.Passed {
			_, _ = fmt.Fprintf(w, "✓ %s: %s\n", result.Name, result.Message)
		} else {
			_, _ = fmt.Fprintf(w, "✗ %s: %s\n", result.Name, result.Message)
			if len(result.Suggestions) > 0 {
				_, _ = fmt.Fprintln(w, "  Suggestions:")
				for _, suggestion := range result.Suggestions {
					_, _ = fmt.Fprintf(w, "    - %s\n", suggestion)
				}
			}
		}
		_, _ = fmt.Fprintln(w)
	}
}

// outputStructuredResults outputs health check results in structured format (JSON/YAML).
func (c *DoctorCommand) outputStructuredResults(w io.Writer, format string, results []CheckResult, failureCount int) error {
	checks := make([]CheckResultStructured, 0, len(results))
	for _, result := range results {
		status := "failed"
		if result.Passed {
			status = "passed"
		}
		checks = append(checks, CheckResultStructured{
			Name:        result.Name,
			Status:      status,
			Message:     result.Message,
			Suggestions: result.Suggestions,
		})
	}

	overall := "passed"
	if failureCount > 0 {
		overall = "failed"
	}

	return PrintOutput(w, format, HealthCheckOutput{
		Overall: overall,
		Checks:  checks,
		Summary: map[string]int{
			"total":  len(results),
			"passed": len(results) - failureCount,
			"failed": failureCount,
		},
	})
}
