package unit

import (
	"context"

	"github.com/trly/systemd-shim/internal/power"
)

// PowerController performs power actions.
type PowerController interface {
	Start(ctx context.Context, action power.Action)
}

// PowerUnit is one of the power targets.
type PowerUnit struct {
	name   string
	action power.Action
	ctrl   PowerController
}

// NewPowerUnit creates a PowerUnit for target name.
func NewPowerUnit(name string, action power.Action, ctrl PowerController) *PowerUnit {
	return &PowerUnit{name: name, action: action, ctrl: ctrl}
}

// Name returns the target name.
func (u *PowerUnit) Name() string {
	return u.name
}

// State is always "static".
func (u *PowerUnit) State(context.Context) string {
	return "static"
}

// Start performs the target's power action. Failures are logged by the
// controller, not returned.
func (u *PowerUnit) Start(ctx context.Context) error {
	u.ctrl.Start(ctx, u.action)
	return nil
}

// Stop does nothing; a power action cannot be undone.
func (u *PowerUnit) Stop(context.Context) error {
	return nil
}
