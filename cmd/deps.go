package cmd

import (
	"context"

	"github.com/benbjohnson/clock"
	sddbus "github.com/coreos/go-systemd/v22/dbus"
	sdutil "github.com/coreos/go-systemd/v22/util"
	"golang.org/x/sys/unix"

	"github.com/trly/systemd-shim/internal/cgmanager"
	"github.com/trly/systemd-shim/internal/execx"
	"github.com/trly/systemd-shim/internal/log"
	"github.com/trly/systemd-shim/internal/shim"
	"github.com/trly/systemd-shim/internal/virt"
)

// CommonDeps provides dependencies common across commands.
type CommonDeps struct {
	Clock  clock.Clock
	Logger log.Logger
}

// NewCommonDeps creates production common dependencies.
func NewCommonDeps(logger log.Logger) CommonDeps {
	return CommonDeps{
		Clock:  clock.New(),
		Logger: logger,
	}
}

// NewRootDeps creates common root dependencies for all commands.
func NewRootDeps(app *App) CommonDeps {
	return NewCommonDeps(app.Logger)
}

// BusConn is the system bus connection the daemon serves on.
type BusConn interface {
	shim.Bus
	shim.Exporter
	shim.NameRequester
	Close() error
}

// CgroupManager is the cgroup backend used by the daemon.
type CgroupManager interface {
	CreateGroup(ctx context.Context, path string, uid int, pids []uint32) cgmanager.Result
	MoveSelf(ctx context.Context) cgmanager.Result
	Close() error
}

// CgroupInspector is the cgroup backend used by the units command.
type CgroupInspector interface {
	GetTasksRecursive(ctx context.Context, controller, path string) ([]int32, error)
	Remove(ctx context.Context, controller, path string, recursive bool) cgmanager.Result
	Prune(ctx context.Context, controller, path string) cgmanager.Result
	Close() error
}

// CgroupProbe reports whether cgmanager answers.
type CgroupProbe interface {
	Available(ctx context.Context) bool
	Close() error
}

// UnitStopper asks the running manager to stop a unit.
type UnitStopper interface {
	StopUnitContext(ctx context.Context, name, mode string, ch chan<- string) (int, error)
	Close()
}

// ExecFunc replaces the current process image.
type ExecFunc func(argv0 string, argv []string, envv []string) error

func connectBus(gate *shim.ReplyGate) (BusConn, error) {
	conn, err := shim.Connect(gate)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func dialManager(ctx context.Context) (UnitStopper, error) {
	conn, err := sddbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Compile-time interface checks.
var (
	_ CgroupManager   = (*cgmanager.Client)(nil)
	_ CgroupInspector = (*cgmanager.Client)(nil)
	_ CgroupProbe     = (*cgmanager.Client)(nil)
	_ UnitStopper     = (*sddbus.Conn)(nil)
)

var (
	runningSystemd          = sdutil.IsRunningSystemd
	execProcess    ExecFunc = unix.Exec
	newDetector             = func() shim.Virtualization { return virt.NewDetector() }
	isExecutable            = execx.IsExecutable
)
