package shim

import (
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
)

// ErrNameTaken is returned when another process owns the bus name.
var ErrNameTaken = errors.New("bus name already owned")

// Exporter is the part of a bus connection used to publish objects.
type Exporter interface {
	Export(v any, path dbus.ObjectPath, iface string) error
	ExportSubtreeMethodTable(methods map[string]any, path dbus.ObjectPath, iface string) error
}

// NameRequester claims well-known names.
type NameRequester interface {
	RequestName(name string, flags dbus.RequestNameFlags) (dbus.RequestNameReply, error)
}

// Connect opens the system bus with the gate installed ahead of dispatch.
func Connect(gate *ReplyGate) (*dbus.Conn, error) {
	var opts []dbus.ConnOption
	if gate != nil {
		opts = append(opts, dbus.WithIncomingInterceptor(gate.Intercept))
	}
	conn, err := dbus.ConnectSystemBus(opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to system bus: %w", err)
	}
	return conn, nil
}

// Export publishes the manager object and the unit subtree on conn.
func Export(conn Exporter, m *Manager) error {
	objects := []struct {
		v     any
		iface string
	}{
		{m, ManagerInterface},
		{&properties{m: m}, PropertiesInterface},
		{introspect.NewIntrospectable(managerNode()), IntrospectableInterface},
	}
	for _, o := range objects {
		if err := conn.Export(o.v, ObjectPath, o.iface); err != nil {
			return fmt.Errorf("exporting %s: %w", o.iface, err)
		}
	}

	units := &unitObjects{m: m}
	tables := []struct {
		methods map[string]any
		iface   string
	}{
		{map[string]any{"Abandon": units.Abandon}, ScopeInterface},
		{map[string]any{"Introspect": units.Introspect}, IntrospectableInterface},
	}
	for _, t := range tables {
		if err := conn.ExportSubtreeMethodTable(t.methods, UnitsPath, t.iface); err != nil {
			return fmt.Errorf("exporting %s below %s: %w", t.iface, UnitsPath, err)
		}
	}
	return nil
}

// ClaimName takes ownership of name without queueing behind another owner.
func ClaimName(conn NameRequester, name string) error {
	reply, err := conn.RequestName(name, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", name, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("%s: %w", name, ErrNameTaken)
	}
	return nil
}
