// Package cmd provides the command line interface for systemd-shim
package cmd

import (
	"github.com/trly/systemd-shim/internal/config"
	"github.com/trly/systemd-shim/internal/execx"
	"github.com/trly/systemd-shim/internal/log"
	"github.com/trly/systemd-shim/internal/state"
)

type contextKey string

const appContextKey contextKey = "app"

// App holds the application dependencies for command line interface.
type App struct {
	Logger         log.Logger
	Config         *config.Settings
	ConfigProvider config.Provider
	Runner         execx.Runner
	Registry       *state.Store
}

// NewApp creates a new App with all dependencies initialized.
func NewApp(logger log.Logger, configProv config.Provider) *App {
	cfg := configProv.GetConfig()

	return &App{
		Logger:         logger,
		Config:         cfg,
		ConfigProvider: configProv,
		Runner:         execx.NewRealRunner(),
		Registry:       state.Open(cfg.StatePath),
	}
}
