// Package config provides configuration management for systemd-shim
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Provider defines the interface for configuration providers.
type Provider interface {
	// GetConfig returns the current application configuration.
	GetConfig() *Settings
	// SetConfig sets the application configuration.
	SetConfig(c *Settings)
	// InitConfig initializes the application configuration.
	InitConfig() (*Settings, error)
	// SetConfigFilePath sets the configuration file path.
	SetConfigFilePath(p string)
}

// defaultConfigProvider implements the Provider interface.
type defaultConfigProvider struct {
	cfg *Settings
}

// NewDefaultConfigProvider creates a new default config provider.
func NewDefaultConfigProvider() Provider {
	return &defaultConfigProvider{cfg: Defaults()}
}

// Default configuration values. The paths mirror a Debian/Ubuntu host
// running sysvinit or upstart with cgmanager and pm-utils installed.
const (
	DefaultBusName          = "org.freedesktop.systemd1"
	DefaultStatePath        = "/run/systemd-shim-state"
	DefaultCgmanagerAddress = "unix:path=/sys/fs/cgroup/cgmanager/sock"
	DefaultIdleTimeout      = 10 * time.Second
	DefaultShutdownPidFile  = "/run/sendsigs.omit.d/systemd-shim.pid"
	DefaultPowerStatePath   = "/sys/power/state"
	DefaultPoweroffCommand  = "/sbin/poweroff"
	DefaultRebootCommand    = "/sbin/reboot"
	DefaultSuspendCommand   = "/usr/sbin/pm-suspend"
	DefaultHibernateCommand = "/usr/sbin/pm-hibernate"
	DefaultNtpdateEnabled   = "/etc/network/if-up.d/ntpdate"
	DefaultNtpdateDisabled  = "/etc/network/if-up.d/ntpdate.disabled"
	DefaultNtpdateAvailable = "/usr/sbin/ntpdate-debian"
	DefaultNtpdAvailable    = "/usr/sbin/ntpd"
	DefaultServiceCommand   = "/usr/sbin/service"
	DefaultUpdateRcdCommand = "/usr/sbin/update-rc.d"
	DefaultReleaseAgent     = "/run/cgmanager/agents/cgm-release-agent.systemd"
	DefaultVerbose          = false
)

// PowerCommands holds the external commands used for power actions.
type PowerCommands struct {
	Poweroff  string `yaml:"poweroff"`
	Reboot    string `yaml:"reboot"`
	Suspend   string `yaml:"suspend"`
	Hibernate string `yaml:"hibernate"`
}

// NTP holds the on-disk markers and tools consulted for time sync toggling.
type NTP struct {
	NtpdateEnabled   string `yaml:"ntpdateEnabled"`
	NtpdateDisabled  string `yaml:"ntpdateDisabled"`
	NtpdateAvailable string `yaml:"ntpdateAvailable"`
	NtpdAvailable    string `yaml:"ntpdAvailable"`
	ServiceCommand   string `yaml:"serviceCommand"`
	UpdateRcdCommand string `yaml:"updateRcdCommand"`
}

// Settings represents the configuration for systemd-shim.
type Settings struct {
	BusName          string        `yaml:"busName"`
	StatePath        string        `yaml:"statePath"`
	CgmanagerAddress string        `yaml:"cgmanagerAddress"`
	IdleTimeout      time.Duration `yaml:"idleTimeout"`
	ShutdownPidFile  string        `yaml:"shutdownPidFile"`
	PowerStatePath   string        `yaml:"powerStatePath"`
	PowerCommands    PowerCommands `yaml:"powerCommands"`
	NTP              NTP           `yaml:"ntp"`
	ReleaseAgent     string        `yaml:"releaseAgent"`
	Verbose          bool          `yaml:"verbose"`
}

// Defaults returns Settings populated with the default values.
func Defaults() *Settings {
	return &Settings{
		BusName:          DefaultBusName,
		StatePath:        DefaultStatePath,
		CgmanagerAddress: DefaultCgmanagerAddress,
		IdleTimeout:      DefaultIdleTimeout,
		ShutdownPidFile:  DefaultShutdownPidFile,
		PowerStatePath:   DefaultPowerStatePath,
		PowerCommands: PowerCommands{
			Poweroff:  DefaultPoweroffCommand,
			Reboot:    DefaultRebootCommand,
			Suspend:   DefaultSuspendCommand,
			Hibernate: DefaultHibernateCommand,
		},
		NTP: NTP{
			NtpdateEnabled:   DefaultNtpdateEnabled,
			NtpdateDisabled:  DefaultNtpdateDisabled,
			NtpdateAvailable: DefaultNtpdateAvailable,
			NtpdAvailable:    DefaultNtpdAvailable,
			ServiceCommand:   DefaultServiceCommand,
			UpdateRcdCommand: DefaultUpdateRcdCommand,
		},
		ReleaseAgent: DefaultReleaseAgent,
		Verbose:      DefaultVerbose,
	}
}

func (p *defaultConfigProvider) SetConfig(c *Settings) {
	p.cfg = c
}

func (p *defaultConfigProvider) GetConfig() *Settings {
	return p.cfg
}

func (p *defaultConfigProvider) SetConfigFilePath(path string) {
	viper.SetConfigFile(path)
}

func (p *defaultConfigProvider) InitConfig() (*Settings, error) {
	cfg, err := initConfigInternal()
	if err != nil {
		return nil, err
	}
	p.cfg = cfg
	return p.cfg, nil
}

func initConfigInternal() (*Settings, error) {
	cfg := Defaults()

	viper.SetDefault("busName", cfg.BusName)
	viper.SetDefault("statePath", cfg.StatePath)
	viper.SetDefault("cgmanagerAddress", cfg.CgmanagerAddress)
	viper.SetDefault("idleTimeout", cfg.IdleTimeout)
	viper.SetDefault("shutdownPidFile", cfg.ShutdownPidFile)
	viper.SetDefault("powerStatePath", cfg.PowerStatePath)
	viper.SetDefault("releaseAgent", cfg.ReleaseAgent)
	viper.SetDefault("verbose", cfg.Verbose)

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/systemd-shim")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("SYSTEMD_SHIM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if cfg.IdleTimeout <= 0 {
		return nil, fmt.Errorf("idleTimeout must be positive, got %s", cfg.IdleTimeout)
	}

	return cfg, nil
}
