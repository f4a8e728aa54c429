package shim

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/trly/systemd-shim/internal/unit"
)

// D-Bus error names returned to callers.
const (
	ErrorFileNotFound     = "org.freedesktop.DBus.Error.FileNotFound"
	ErrorUnknownInterface = "org.freedesktop.DBus.Error.UnknownInterface"
	ErrorUnknownProperty  = "org.freedesktop.DBus.Error.UnknownProperty"
	ErrorPropertyReadOnly = "org.freedesktop.DBus.Error.PropertyReadOnly"
)

// toDBusError converts an error from the unit layer into a reply.
func toDBusError(err error) *dbus.Error {
	if unit.IsNotFound(err) {
		return dbus.NewError(ErrorFileNotFound, []any{err.Error()})
	}
	return dbus.MakeFailedError(err)
}

func unknownInterface(iface string) *dbus.Error {
	return dbus.NewError(ErrorUnknownInterface, []any{fmt.Sprintf("Unknown interface %s", iface)})
}

func unknownProperty(name string) *dbus.Error {
	return dbus.NewError(ErrorUnknownProperty, []any{fmt.Sprintf("Unknown property %s", name)})
}

func readOnlyProperty(name string) *dbus.Error {
	return dbus.NewError(ErrorPropertyReadOnly, []any{fmt.Sprintf("Property %s is read-only", name)})
}
