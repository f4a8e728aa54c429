package shim

import (
	"context"

	"github.com/godbus/dbus/v5"
)

const propVirtualization = "Virtualization"

// properties implements org.freedesktop.DBus.Properties for the manager
// object. The only property is Virtualization.
type properties struct {
	m *Manager
}

// Get returns a single property of the Manager interface.
func (p *properties) Get(iface, name string) (dbus.Variant, *dbus.Error) {
	var value dbus.Variant
	derr := p.m.do(func(context.Context) *dbus.Error {
		if iface != ManagerInterface {
			return unknownInterface(iface)
		}
		if name != propVirtualization {
			return unknownProperty(name)
		}
		value = dbus.MakeVariant(p.m.virtualization())
		return nil
	})
	return value, derr
}

// GetAll returns every property of the Manager interface.
func (p *properties) GetAll(iface string) (map[string]dbus.Variant, *dbus.Error) {
	var values map[string]dbus.Variant
	derr := p.m.do(func(context.Context) *dbus.Error {
		if iface != ManagerInterface {
			return unknownInterface(iface)
		}
		values = map[string]dbus.Variant{
			propVirtualization: dbus.MakeVariant(p.m.virtualization()),
		}
		return nil
	})
	return values, derr
}

// Set always fails; no property is writable.
func (p *properties) Set(iface, name string, _ dbus.Variant) *dbus.Error {
	return p.m.do(func(context.Context) *dbus.Error {
		if iface != ManagerInterface {
			return unknownInterface(iface)
		}
		if name != propVirtualization {
			return unknownProperty(name)
		}
		return readOnlyProperty(name)
	})
}

func (m *Manager) virtualization() string {
	if m.virt == nil {
		return ""
	}
	return m.virt.ID()
}
