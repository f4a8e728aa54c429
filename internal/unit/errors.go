package unit

import (
	"errors"
	"fmt"
)

// NotFoundError is returned when a name does not map to any unit kind.
// It is the only unit error reported back to callers.
type NotFoundError struct {
	Name string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Unknown unit: %s", e.Name)
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(name string) *NotFoundError {
	return &NotFoundError{Name: name}
}

// IsNotFound checks if an error is a NotFoundError.
func IsNotFound(err error) bool {
	var nerr *NotFoundError
	return errors.As(err, &nerr)
}

// UnsupportedOperationError is returned when a unit kind cannot perform an operation.
type UnsupportedOperationError struct {
	Unit      string // The name of the unit
	Operation string // The operation that was requested
}

// Error implements the error interface.
func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("%s: %s is not supported", e.Unit, e.Operation)
}

// NewUnsupportedOperationError creates a new UnsupportedOperationError.
func NewUnsupportedOperationError(unit, operation string) *UnsupportedOperationError {
	return &UnsupportedOperationError{Unit: unit, Operation: operation}
}

// IsUnsupportedOperation checks if an error is an UnsupportedOperationError.
func IsUnsupportedOperation(err error) bool {
	var uerr *UnsupportedOperationError
	return errors.As(err, &uerr)
}

// InvalidPropertiesError is returned when a transient start lacks what it needs.
type InvalidPropertiesError struct {
	Unit   string
	Reason string
}

// Error implements the error interface.
func (e *InvalidPropertiesError) Error() string {
	return fmt.Sprintf("%s: invalid properties: %s", e.Unit, e.Reason)
}

// IsInvalidProperties checks if an error is an InvalidPropertiesError.
func IsInvalidProperties(err error) bool {
	var perr *InvalidPropertiesError
	return errors.As(err, &perr)
}
