package model

import "fmt"

// ValidationError reports a value that failed its syntax rules.
// It wraps the underlying ozzo-validation error.
type ValidationError struct {
	Field string // Logical name of the value (e.g. "idempotency key")
	Value string // Raw input that was rejected
	Err   error  // Rule violation
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%q is not a valid %s: %v", e.Value, e.Field, e.Err)
}

// Unwrap returns the rule violation.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

func newValidationError(field, value string, err error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Err: err}
}
