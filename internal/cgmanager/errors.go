package cgmanager

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// CallError represents a failed call on an established connection.
type CallError struct {
	Method string // The cgmanager method that failed
	Cause  error  // The underlying error
}

// Error implements the error interface.
func (e *CallError) Error() string {
	return fmt.Sprintf("cgmanager %s failed: %v", e.Method, e.Cause)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *CallError) Unwrap() error {
	return e.Cause
}

// VersionError is returned when the manager does not speak a recent enough API.
type VersionError struct {
	Version dbus.Variant
}

// Error implements the error interface.
func (e *VersionError) Error() string {
	return fmt.Sprintf("incorrect cgmanager API version %s, need at least %d", e.Version.String(), RequiredAPIVersion)
}
