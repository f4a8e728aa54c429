// Package cmd provides config init command functionality for systemd-shim CLI
package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/trly/systemd-shim/internal/config"
)

// DefaultConfigFile is where config init writes unless --path is given.
const DefaultConfigFile = "/etc/systemd-shim/config.yaml"

// InitOptions holds init command options.
type InitOptions struct {
	Path  string
	Force bool
}

// InitDeps holds init dependencies.
type InitDeps struct {
	CommonDeps
	Stat      func(string) (os.FileInfo, error)
	MkdirAll  func(string, os.FileMode) error
	WriteFile func(string, []byte, os.FileMode) error
	Out       io.Writer
}

// InitCommand represents the config init command.
type InitCommand struct{}

// NewInitCommand creates a new InitCommand.
func NewInitCommand() *InitCommand {
	return &InitCommand{}
}

// getApp retrieves the App from the command context.
func (c *InitCommand) getApp(cmd *cobra.Command) *App {
	return cmd.Context().Value(appContextKey).(*App)
}

// GetCobraCommand returns the cobra command for config init.
func (c *InitCommand) GetCobraCommand() *cobra.Command {
	var opts InitOptions

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a default configuration file",
		Long:  "Write a configuration file holding every setting at its default value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := c.getApp(cmd)
			deps := c.buildDeps(app, cmd.OutOrStdout())
			return c.Run(app, opts, deps)
		},
	}

	initCmd.Flags().StringVar(&opts.Path, "path", DefaultConfigFile, "Where to write the configuration file")
	initCmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "Overwrite existing configuration file")

	return initCmd
}

// Run executes the init command with injected dependencies.
func (c *InitCommand) Run(_ *App, opts InitOptions, deps InitDeps) error {
	configFile := opts.Path
	if configFile == "" {
		configFile = DefaultConfigFile
	}

	if _, err := deps.Stat(configFile); err == nil && !opts.Force {
		return fmt.Errorf("configuration file already exists at %s, use --force to overwrite", configFile)
	}

	configDir := filepath.Dir(configFile)
	if err := deps.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", configDir, err)
	}

	data, err := yaml.Marshal(config.Defaults())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := deps.WriteFile(configFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", configFile, err)
	}

	deps.Logger.Debug("Wrote default configuration", "path", configFile)
	_, _ = fmt.Fprintf(deps.Out, "Configuration file created at %s\n", configFile)
	return nil
}

// buildDeps creates production dependencies for the init command.
func (c *InitCommand) buildDeps(app *App, out io.Writer) InitDeps {
	return InitDeps{
		CommonDeps: NewRootDeps(app),
		Stat:       os.Stat,
		MkdirAll:   os.MkdirAll,
		WriteFile:  os.WriteFile,
		Out:        out,
	}
}
