// Package unit models the units the shim answers for and maps unit names to
// them.
//
// Three kinds exist: cgroup slices and scopes, the NTP service and the power
// targets. Every request resolves a fresh unit; state that must outlive a
// request lives in the backends handed to the Resolver.
package unit

import (
	"context"
	"strings"

	sddbus "github.com/coreos/go-systemd/v22/dbus"
)

// Unit is the behavior shared by every unit kind.
type Unit interface {
	Name() string
	State(ctx context.Context) string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// TransientStarter is implemented by units that can be started from a
// property list instead of a unit file.
type TransientStarter interface {
	StartTransient(ctx context.Context, props []sddbus.Property) error
}

// Abandoner is implemented by units whose processes can be left to run
// unsupervised.
type Abandoner interface {
	Abandon(ctx context.Context) error
}

// Unit name suffixes.
const (
	SliceSuffix = ".slice"
	ScopeSuffix = ".scope"
)

// Kind returns "slice" or "scope" for cgroup unit names and "" otherwise.
func Kind(name string) string {
	switch {
	case strings.HasSuffix(name, SliceSuffix):
		return "slice"
	case strings.HasSuffix(name, ScopeSuffix):
		return "scope"
	default:
		return ""
	}
}
