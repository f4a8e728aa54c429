package unit

import (
	"strings"

	"github.com/trly/systemd-shim/internal/log"
	"github.com/trly/systemd-shim/internal/power"
	"github.com/trly/systemd-shim/internal/state"
)

// Backends are the long-lived collaborators shared by resolved units.
type Backends struct {
	Cgroups  CgroupBackend
	Registry state.Registry
	NTP      NtpController
	Power    PowerController
}

// Resolver maps unit names to units.
type Resolver struct {
	backends Backends
	logger   log.Logger
}

// NewResolver creates a Resolver.
func NewResolver(backends Backends, logger log.Logger) *Resolver {
	return &Resolver{
		backends: backends,
		logger:   logger,
	}
}

// Resolve returns the unit for name. Rules are checked in order: the NTP
// service (only if a mechanism is installed), the power targets, then
// slices and scopes. Anything else is a *NotFoundError.
func (r *Resolver) Resolve(name string) (Unit, error) {
	if name == NtpServiceName {
		if r.backends.NTP != nil && r.backends.NTP.Available() {
			return NewNtpUnit(r.backends.NTP), nil
		}
		return nil, NewNotFoundError(name)
	}

	if action, err := power.ParseTarget(name); err == nil {
		return NewPowerUnit(name, action, r.backends.Power), nil
	}

	if strings.HasSuffix(name, SliceSuffix) || strings.HasSuffix(name, ScopeSuffix) {
		return NewCgroupUnit(name, r.backends.Cgroups, r.backends.Registry, r.logger), nil
	}

	return nil, NewNotFoundError(name)
}
