package courier

import (
	"errors"
	"fmt"
)

// Error represents a courier library error with categorization.
type Error struct {
	// Code is a machine-readable error code
	Code string

	// Message is a human-readable error message
	Message string

	// Err is the underlying error (if any)
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a *Error with the same code and message,
// so errors.Is matches the package sentinels even when they carry a cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == e.Message
}

// Error codes for courier operations.
const (
	// ErrCodeNoData indicates no data was found.
	ErrCodeNoData = "NO_DATA"

	// ErrCodeValidation indicates malformed client input (idempotency key, address, form).
	ErrCodeValidation = "VALIDATION_ERROR"

	// ErrCodeConfiguration indicates invalid configuration.
	ErrCodeConfiguration = "CONFIGURATION_ERROR"

	// ErrCodeDatabase indicates a store connectivity or constraint failure.
	ErrCodeDatabase = "DATABASE_ERROR"

	// ErrCodeDelivery indicates a transport failed to deliver a message.
	ErrCodeDelivery = "DELIVERY_ERROR"

	// ErrCodeInvariantViolation indicates the store returned a state that should be impossible,
	// such as a claim row vanishing between the insert conflict and the fetch.
	ErrCodeInvariantViolation = "INVARIANT_VIOLATION"

	// ErrCodeInFlight indicates another request holds the claim and has not completed it yet.
	ErrCodeInFlight = "IN_FLIGHT"

	// ErrCodeTransportUnavailable indicates a transport refused to attempt a send,
	// for example because its circuit breaker is open. Nothing reached the provider.
	ErrCodeTransportUnavailable = "TRANSPORT_UNAVAILABLE"
)

// Common errors.
var (
	// ErrNoData is returned when a query returns no results.
	// For the delivery queue it means the queue has no available item.
	ErrNoData = &Error{
		Code:    ErrCodeNoData,
		Message: "no data found",
	}

	// ErrUnitOfWorkDone is returned when a claim or lease is completed twice.
	ErrUnitOfWorkDone = &Error{
		Code:    ErrCodeConfiguration,
		Message: "unit of work already completed",
	}

	// ErrInFlight is returned when a request finds its idempotency claim held by
	// another request that has not stored a response yet. Clients should retry later.
	ErrInFlight = &Error{
		Code:    ErrCodeInFlight,
		Message: "request with this idempotency key is still being processed",
	}

	// ErrTransportUnavailable is wrapped by transports that decline a send without
	// attempting it. Queue items and claims hit by it are left for a later retry.
	ErrTransportUnavailable = &Error{
		Code:    ErrCodeTransportUnavailable,
		Message: "email transport is temporarily unavailable",
	}
)

// NewError creates a new Error with the given code and message.
func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// NewErrorWithCause creates a new Error wrapping an underlying error.
func NewErrorWithCause(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     cause,
	}
}

// HasCode reports whether err (or any error it wraps) is a *Error with the given code.
func HasCode(err error, code string) bool {
	var courierErr *Error
	for err != nil {
		if !errors.As(err, &courierErr) {
			return false
		}
		if courierErr.Code == code {
			return true
		}
		err = courierErr.Err
	}
	return false
}

// IsNoData checks if an error is ErrNoData.
func IsNoData(err error) bool {
	return HasCode(err, ErrCodeNoData)
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	return HasCode(err, ErrCodeValidation)
}

// IsInvariantViolation checks if an error signals a broken store invariant.
func IsInvariantViolation(err error) bool {
	return HasCode(err, ErrCodeInvariantViolation)
}

// IsInFlight checks if an error reports a claim still being processed by another request.
func IsInFlight(err error) bool {
	return HasCode(err, ErrCodeInFlight)
}

// IsTransportUnavailable checks if a send was declined without being attempted.
func IsTransportUnavailable(err error) bool {
	return HasCode(err, ErrCodeTransportUnavailable)
}

// CauseChain flattens err and every error it wraps into a list of messages,
// outermost first. Joined errors contribute each branch in order.
func CauseChain(err error) []string {
	var chain []string
	for err != nil {
		chain = append(chain, err.Error())
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, e := range joined.Unwrap() {
				chain = append(chain, CauseChain(e)...)
			}
			return chain
		}
		err = errors.Unwrap(err)
	}
	return chain
}
