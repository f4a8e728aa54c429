package shim

import (
	"context"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/trly/systemd-shim/internal/unit"
)

// unitObjects serves the objects below UnitsPath. The bus library hands
// every path in the subtree to the same handlers, so the unit is taken from
// the path of the call.
type unitObjects struct {
	m *Manager
}

// Abandon abandons the scope named by the object path.
func (o *unitObjects) Abandon(msg dbus.Message) *dbus.Error {
	name, _ := unitFromPath(pathOf(&msg))

	return o.m.do(func(ctx context.Context) *dbus.Error {
		u, err := o.m.resolver.Resolve(name)
		if err != nil {
			return toDBusError(err)
		}
		a, ok := u.(unit.Abandoner)
		if !ok {
			o.m.report(name, "Abandon", unit.NewUnsupportedOperationError(name, "Abandon"))
			return nil
		}
		o.m.report(name, "Abandon", a.Abandon(ctx))
		return nil
	})
}

// Introspect describes the unit container, listing known units as
// children, or a single unit object.
func (o *unitObjects) Introspect(msg dbus.Message) (string, *dbus.Error) {
	if _, ok := unitFromPath(pathOf(&msg)); ok {
		if derr := o.m.do(noop); derr != nil {
			return "", derr
		}
		return render(unitNode()), nil
	}

	var names []string
	derr := o.m.do(func(context.Context) *dbus.Error {
		if o.m.units == nil {
			return nil
		}
		var err error
		if names, err = o.m.units.ListUnits(); err != nil {
			o.m.logger.Warn("Failed to list units", "error", err)
		}
		return nil
	})
	if derr != nil {
		return "", derr
	}
	return render(unitsNode(names)), nil
}

func pathOf(msg *dbus.Message) dbus.ObjectPath {
	path, _ := msg.Headers[dbus.FieldPath].Value().(dbus.ObjectPath)
	return path
}

// unitFromPath returns the unit name for an object below UnitsPath. ok is
// false for UnitsPath itself.
func unitFromPath(path dbus.ObjectPath) (name string, ok bool) {
	element, found := strings.CutPrefix(string(path), UnitsPath+"/")
	if !found || element == "" {
		return "", false
	}
	return Unescape(element), true
}
