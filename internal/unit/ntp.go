package unit

import (
	"context"
)

// NtpServiceName is the only name resolved to the NTP unit.
const NtpServiceName = "ntpd.service"

// NtpController switches network time synchronization.
type NtpController interface {
	Available() bool
	Enabled(ctx context.Context) bool
	SetEnabled(ctx context.Context, enabled bool)
}

// NtpUnit stands for whichever NTP mechanisms the host has.
type NtpUnit struct {
	ctrl NtpController
}

// NewNtpUnit creates an NtpUnit.
func NewNtpUnit(ctrl NtpController) *NtpUnit {
	return &NtpUnit{ctrl: ctrl}
}

// Name returns ntpd.service.
func (u *NtpUnit) Name() string {
	return NtpServiceName
}

// State is "enabled" if any mechanism is on.
func (u *NtpUnit) State(ctx context.Context) string {
	if u.ctrl.Enabled(ctx) {
		return "enabled"
	}
	return "disabled"
}

// Start turns on every installed mechanism.
func (u *NtpUnit) Start(ctx context.Context) error {
	u.ctrl.SetEnabled(ctx, true)
	return nil
}

// Stop turns off every installed mechanism.
func (u *NtpUnit) Stop(ctx context.Context) error {
	u.ctrl.SetEnabled(ctx, false)
	return nil
}
