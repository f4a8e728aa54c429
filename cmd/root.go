// Package cmd provides the command line interface for systemd-shim
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
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/trly/systemd-shim/internal/config"
	"github.com/trly/systemd-shim/internal/log"
)

// RootOptions holds the persistent flags shared by every command.
type RootOptions struct {
	ConfigFile  string
	Verbose     bool
	IdleTimeout time.Duration
	StatePath   string
}

// RootCommand represents the root command for systemd-shim CLI.
type RootCommand struct {
	provider config.Provider
}

// NewRootCommand creates a RootCommand reading configuration through provider.
func NewRootCommand(provider config.Provider) *RootCommand {
	return &RootCommand{provider: provider}
}

// GetCobraCommand returns the cobra root command for systemd-shim CLI.
func (c *RootCommand) GetCobraCommand() *cobra.Command {
	var opts RootOptions
	daemon := NewDaemonCommand()

	rootCmd := &cobra.Command{
		Use:   "systemd-shim",
		Short: "systemd-shim answers systemd D-Bus requests on hosts without systemd.",
		Long: `systemd-shim owns org.freedesktop.systemd1 on the system bus of a host that
runs another init system. It creates slices and scopes through cgmanager,
toggles NTP, carries out power targets and exits again when idle.

Without a subcommand it runs the daemon, which is what D-Bus activation does.`,
		Args: cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if ctx := cmd.Context(); ctx != nil {
				if _, ok := ctx.Value(appContextKey).(*App); ok {
					return nil
				}
			}
			app, err := c.buildApp(cmd, opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(context.WithValue(ctx, appContextKey, app))
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return daemon.execute(cmd, DaemonOptions{})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "Path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&opts.IdleTimeout, "idle-timeout", 0, "Exit after this long without requests")
	rootCmd.PersistentFlags().StringVar(&opts.StatePath, "state-path", "", "Path to the state file")

	rootCmd.AddCommand(
		daemon.GetCobraCommand(),
		NewUnitsCommand().GetCobraCommand(),
		NewReleaseAgentCommand().GetCobraCommand(),
		NewConfigCommand().GetCobraCommand(),
		NewDoctorCommand().GetCobraCommand(),
		NewVersionCommand().GetCobraCommand(),
	)

	return rootCmd
}

func (c *RootCommand) buildApp(cmd *cobra.Command, opts RootOptions) (*App, error) {
	provider := c.provider
	if provider == nil {
		provider = config.NewDefaultConfigProvider()
	}
	if opts.ConfigFile != "" {
		provider.SetConfigFilePath(opts.ConfigFile)
	}

	cfg, err := provider.InitConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("verbose") {
		cfg.Verbose = opts.Verbose
	}
	if flags.Changed("idle-timeout") {
		if opts.IdleTimeout <= 0 {
			return nil, fmt.Errorf("idle timeout must be positive, got %s", opts.IdleTimeout)
		}
		cfg.IdleTimeout = opts.IdleTimeout
	}
	if opts.StatePath != "" {
		cfg.StatePath = opts.StatePath
	}

	logger := log.NewLogger(cfg.Verbose)
	if cfg.Verbose {
		logger.Debug("Configuration loaded", "file", viper.ConfigFileUsed())
	}

	return NewApp(logger, provider), nil
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCommand(config.NewDefaultConfigProvider()).GetCobraCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
