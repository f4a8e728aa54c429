// Package cmd provides config show command functionality for systemd-shim CLI
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ConfigShowCommand represents the config show command.
type ConfigShowCommand struct{}

// NewConfigShowCommand creates a new ConfigShowCommand.
func NewConfigShowCommand() *ConfigShowCommand {
	return &ConfigShowCommand{}
}

// getApp retrieves the App from the command context.
func (c *ConfigShowCommand) getApp(cmd *cobra.Command) *App {
	return cmd.Context().Value(appContextKey).(*App)
}

// GetCobraCommand returns the cobra command for config show operations.
func (c *ConfigShowCommand) GetCobraCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long:  "Display the current configuration including defaults, file, environment and flag overrides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := c.getApp(cmd)
			output, err := yaml.Marshal(app.Config)
			if err != nil {
				return fmt.Errorf("error marshalling config: %w", err)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), string(output))
			return err
		},
	}
}
