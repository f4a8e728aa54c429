// Package shim exposes the compatibility units as the systemd Manager
// object on the system bus.
package shim

import (
	"context"

	sddbus "github.com/coreos/go-systemd/v22/dbus"
	"github.com/godbus/dbus/v5"

	"github.com/trly/systemd-shim/internal/log"
	"github.com/trly/systemd-shim/internal/unit"
)

// Object paths and interfaces served by the shim.
const (
	ObjectPath              = "/org/freedesktop/systemd1"
	UnitsPath               = ObjectPath + "/unit"
	ManagerInterface        = "org.freedesktop.systemd1.Manager"
	ScopeInterface          = "org.freedesktop.systemd1.Scope"
	PropertiesInterface     = "org.freedesktop.DBus.Properties"
	IntrospectableInterface = "org.freedesktop.DBus.Introspectable"
)

// Manager methods that answer with the placeholder job and then signal
// JobRemoved, with their argument signatures.
var jobMethods = map[string]string{
	"StartUnit":          "ss",
	"StartTransientUnit": "ssa(sv)a(sa(sv))",
}

var rootJob = dbus.ObjectPath("/")

// Resolver maps unit names to units.
type Resolver interface {
	Resolve(name string) (unit.Unit, error)
}

// Virtualization identifies the environment the shim runs in.
type Virtualization interface {
	ID() string
}

// UnitLister enumerates the units with recorded state.
type UnitLister interface {
	ListUnits() ([]string, error)
}

// UnitFileChange is one entry of the change list returned by the unit file
// methods. The shim never changes unit files, so lists are always empty.
type UnitFileChange struct {
	Type        string
	Filename    string
	Destination string
}

// Deps bundles what a Manager needs.
type Deps struct {
	Loop     *Loop
	Resolver Resolver
	Virt     Virtualization
	Units    UnitLister
	Bus      Bus
	Gate     *ReplyGate
	Logger   log.Logger
}

// Manager implements org.freedesktop.systemd1.Manager. Every call is run on
// the loop.
type Manager struct {
	loop     *Loop
	resolver Resolver
	virt     Virtualization
	units    UnitLister
	bus      Bus
	gate     *ReplyGate
	logger   log.Logger
}

// NewManager creates a Manager from deps.
func NewManager(deps Deps) *Manager {
	logger := deps.Logger
	if logger == nil {
		logger = log.Nop()
	}
	return &Manager{
		loop:     deps.Loop,
		resolver: deps.Resolver,
		virt:     deps.Virt,
		units:    deps.Units,
		bus:      deps.Bus,
		gate:     deps.Gate,
		logger:   logger,
	}
}

// NewJobGate returns the reply gate for the Manager's job methods.
func NewJobGate() *ReplyGate {
	return NewReplyGate(jobMethods)
}

// GetUnitFileState returns the state of the named unit.
func (m *Manager) GetUnitFileState(file string) (string, *dbus.Error) {
	var state string
	derr := m.do(func(ctx context.Context) *dbus.Error {
		u, err := m.resolver.Resolve(file)
		if err != nil {
			return toDBusError(err)
		}
		state = u.State(ctx)
		return nil
	})
	return state, derr
}

// StartUnit starts the named unit. The reply carries the placeholder job
// and is followed by JobRemoved for it.
func (m *Manager) StartUnit(msg dbus.Message, name, mode string) (dbus.ObjectPath, *dbus.Error) {
	deferred, wantsReply := m.gate.take(&msg)

	derr := m.do(func(ctx context.Context) *dbus.Error {
		u, err := m.resolver.Resolve(name)
		if err != nil {
			return toDBusError(err)
		}
		m.logger.Debug("Starting unit", "unit", name, "mode", mode)
		m.report(name, "StartUnit", u.Start(ctx))
		return nil
	})
	if derr != nil {
		return "", derr
	}

	m.finishJob(&msg, deferred, wantsReply, "", "")
	return rootJob, nil
}

// StopUnit stops the named unit.
func (m *Manager) StopUnit(name, mode string) (dbus.ObjectPath, *dbus.Error) {
	derr := m.do(func(ctx context.Context) *dbus.Error {
		u, err := m.resolver.Resolve(name)
		if err != nil {
			return toDBusError(err)
		}
		m.logger.Debug("Stopping unit", "unit", name, "mode", mode)
		m.report(name, "StopUnit", u.Stop(ctx))
		return nil
	})
	if derr != nil {
		return "", derr
	}
	return rootJob, nil
}

// StartTransientUnit creates a transient unit from properties. aux is
// accepted and ignored.
func (m *Manager) StartTransientUnit(msg dbus.Message, name, mode string, properties []sddbus.Property, aux []sddbus.PropertyCollection) (dbus.ObjectPath, *dbus.Error) {
	deferred, wantsReply := m.gate.take(&msg)

	var state string
	derr := m.do(func(ctx context.Context) *dbus.Error {
		u, err := m.resolver.Resolve(name)
		if err != nil {
			return toDBusError(err)
		}
		starter, ok := u.(unit.TransientStarter)
		if !ok {
			err = unit.NewUnsupportedOperationError(name, "StartTransientUnit")
		} else {
			m.logger.Debug("Starting transient unit", "unit", name, "mode", mode, "properties", len(properties))
			err = starter.StartTransient(ctx, properties)
		}
		m.report(name, "StartTransientUnit", err)
		state = u.State(ctx)
		return nil
	})
	if derr != nil {
		return "", derr
	}

	m.finishJob(&msg, deferred, wantsReply, state, "done")
	return rootJob, nil
}

// EnableUnitFiles accepts the request and changes nothing.
func (m *Manager) EnableUnitFiles(files []string, runtime, force bool) (bool, []UnitFileChange, *dbus.Error) {
	if derr := m.do(noop); derr != nil {
		return false, nil, derr
	}
	return true, []UnitFileChange{}, nil
}

// DisableUnitFiles accepts the request and changes nothing.
func (m *Manager) DisableUnitFiles(files []string, runtime bool) ([]UnitFileChange, *dbus.Error) {
	if derr := m.do(noop); derr != nil {
		return nil, derr
	}
	return []UnitFileChange{}, nil
}

// Reload is accepted and ignored.
func (m *Manager) Reload() *dbus.Error {
	return m.do(noop)
}

// Subscribe is accepted and ignored.
func (m *Manager) Subscribe() *dbus.Error {
	return m.do(noop)
}

// Unsubscribe is accepted and ignored.
func (m *Manager) Unsubscribe() *dbus.Error {
	return m.do(noop)
}

func noop(context.Context) *dbus.Error { return nil }

// do runs fn on the loop.
func (m *Manager) do(fn func(ctx context.Context) *dbus.Error) *dbus.Error {
	var derr *dbus.Error
	err := m.loop.Do(context.Background(), func(ctx context.Context) {
		derr = fn(ctx)
	})
	if err != nil {
		return dbus.MakeFailedError(err)
	}
	return derr
}

// report logs a failed unit operation. Callers are not told about it.
func (m *Manager) report(name, op string, err error) {
	if err == nil {
		return
	}
	switch {
	case unit.IsUnsupportedOperation(err):
		m.logger.Warn("Operation not supported", "unit", name, "operation", op, "error", err)
	case unit.IsInvalidProperties(err):
		m.logger.Warn("Invalid unit properties", "unit", name, "operation", op, "error", err)
	default:
		m.logger.Warn("Unit operation failed", "unit", name, "operation", op, "error", err)
	}
}

// finishJob sends the reply, when the gate took it over, and then the
// JobRemoved signal to the caller.
func (m *Manager) finishJob(call *dbus.Message, deferred, wantsReply bool, unitName, result string) {
	if m.bus == nil {
		return
	}
	if deferred && wantsReply {
		m.bus.Send(newReply(call, rootJob), nil)
	}
	sender, _ := call.Headers[dbus.FieldSender].Value().(string)
	m.bus.Send(newJobRemoved(sender, unitName, result), nil)
}
