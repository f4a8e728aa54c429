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
	"strconv"

	"github.com/fatih/color"
	"github.com/rodaine/table"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/trly/systemd-shim/internal/cgmanager"
	"github.com/trly/systemd-shim/internal/state"
	"github.com/trly/systemd-shim/internal/unit"
)

// UnitsOptions holds units command options.
type UnitsOptions struct {
	Output string
	Prune  bool
}

// UnitsDeps holds units dependencies.
type UnitsDeps struct {
	CommonDeps
	Registry state.Registry
	Cgroups  CgroupInspector
	Out      io.Writer
}

// UnitsCommand lists the slices and scopes recorded in the state file.
type UnitsCommand struct{}

// NewUnitsCommand creates a new UnitsCommand.
func NewUnitsCommand() *UnitsCommand {
	return &UnitsCommand{}
}

// getApp retrieves the App from the command context.
func (c *UnitsCommand) getApp(cmd *cobra.Command) *App {
	return cmd.Context().Value(appContextKey).(*App)
}

// GetCobraCommand returns the cobra command for listing units.
func (c *UnitsCommand) GetCobraCommand() *cobra.Command {
	var opts UnitsOptions

	unitsCmd := &cobra.Command{
		Use:   "units",
		Short: "List slices and scopes created through the shim",
		Long: `List the slices and scopes recorded in the state file together with the
number of tasks cgmanager reports in each cgroup.

With --prune, cgroups that no longer hold any task are removed and dropped
from the state file.`,
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

	unitsCmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text, json, yaml)")
	unitsCmd.Flags().BoolVar(&opts.Prune, "prune", false, "Remove empty cgroups and forget them")
	err := unitsCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return outputFormats, cobra.ShellCompDirectiveNoFileComp
	})
	if err != nil {
		return unitsCmd
	}

	return unitsCmd
}

// buildDeps creates production dependencies for the units command.
func (c *UnitsCommand) buildDeps(app *App, out io.Writer) UnitsDeps {
	return UnitsDeps{
		CommonDeps: NewRootDeps(app),
		Registry:   app.Registry,
		Cgroups:    cgmanager.New(app.Config.CgmanagerAddress, app.Logger),
		Out:        out,
	}
}

// Run executes the units command with injected dependencies.
func (c *UnitsCommand) Run(ctx context.Context, app *App, opts UnitsOptions, deps UnitsDeps) error {
	names, err := deps.Registry.ListUnits()
	if err != nil {
		return fmt.Errorf("error reading state file: %w", err)
	}

	entries := make([]UnitEntry, 0, len(names))
	for _, name := range names {
		entry, err := c.inspect(ctx, name, deps)
		if err != nil {
			return err
		}
		if opts.Prune && entry.Tasks == 0 {
			entry.Pruned = c.prune(ctx, entry, deps)
		}
		entries = append(entries, entry)
	}

	if opts.Output != "text" {
		return PrintOutput(deps.Out, opts.Output, UnitsOutput{
			StatePath: app.Config.StatePath,
			Units:     entries,
		})
	}

	c.printTable(deps.Out, entries)
	return nil
}

func (c *UnitsCommand) inspect(ctx context.Context, name string, deps UnitsDeps) (UnitEntry, error) {
	entry := UnitEntry{
		Name:  name,
		Kind:  cases.Title(language.English).String(unit.Kind(name)),
		Tasks: -1,
	}

	path, ok, err := deps.Registry.GetString(name, unit.KeyPath)
	if err != nil {
		return entry, fmt.Errorf("error reading state of %s: %w", name, err)
	}
	if uid, ok, err := deps.Registry.GetString(name, unit.KeyUID); err == nil && ok {
		entry.UID = uid
	}
	if !ok {
		return entry, nil
	}
	entry.Path = path

	tasks, err := deps.Cgroups.GetTasksRecursive(ctx, cgmanager.AllControllers, path)
	if err != nil {
		deps.Logger.Debug("Error getting tasks", "unit", name, "error", err)
		return entry, nil
	}
	entry.Tasks = len(tasks)
	return entry, nil
}

func (c *UnitsCommand) prune(ctx context.Context, entry UnitEntry, deps UnitsDeps) bool {
	deps.Cgroups.Prune(ctx, cgmanager.AllControllers, entry.Path)
	if !deps.Cgroups.Remove(ctx, cgmanager.AllControllers, entry.Path, false).OK() {
		return false
	}
	if err := deps.Registry.RemoveUnit(entry.Name); err != nil {
		deps.Logger.Warn("Failed to forget unit", "unit", entry.Name, "error", err)
		return false
	}
	return true
}

func (c *UnitsCommand) printTable(w io.Writer, entries []UnitEntry) {
	headerFmt := color.New(color.FgGreen, color.Underline).SprintfFunc()
	columnFmt := color.New(color.FgYellow).SprintfFunc()
	tbl := table.New("Unit", "Kind", "Cgroup", "UID", "Tasks")
	tbl.WithHeaderFormatter(headerFmt).WithFirstColumnFormatter(columnFmt).WithWriter(w)

	for _, e := range entries {
		tasks := "-"
		if e.Tasks >= 0 {
			tasks = strconv.Itoa(e.Tasks)
		}
		if e.Pruned {
			tasks += " (pruned)"
		}
		tbl.AddRow(e.Name, e.Kind, e.Path, e.UID, tasks)
	}
	tbl.Print()
}
