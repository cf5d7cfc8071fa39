package types

import (
	"errors"
	"fmt"
)

// ErrNotFound marks a lookup for a Need, Request, Contract, Vessel, LC or
// allocation that does not exist. Handlers map it to a 404.
var ErrNotFound = errors.New("record not found")

// ValidationError marks malformed input: non-positive quantities, dangling
// references, rejected over-allocations. Handlers map it to a 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError builds a ValidationError from a format string.
func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
