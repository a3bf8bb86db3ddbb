package errors

import (
	"errors"
	"fmt"
)

// Standard error types
var (
	ErrConfiguration   = errors.New("configuration error")
	ErrSerialization   = errors.New("serialization error")
	ErrTransport       = errors.New("transport error")
	ErrHTTPResponse    = errors.New("HTTP response error")
	ErrErrorResponse   = fmt.Errorf("%w: error response", ErrHTTPResponse)
	ErrInvalidResponse = fmt.Errorf("%w: invalid response", ErrHTTPResponse)
	ErrAuthentication  = errors.New("authentication error")
	ErrTokenExpired    = errors.New("token expired")
	ErrValidation      = errors.New("validation error")
)

// WrapError wraps an error with a standard error type.
// Both errType and err stay reachable through errors.Is / errors.As.
func WrapError(err error, errType error, message string) error {
	return fmt.Errorf("%w: %s: %w", errType, message, err)
}

// Is provides a convenience wrapper around errors.Is
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As provides a convenience wrapper around errors.As
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Unwrap provides a convenience wrapper around errors.Unwrap
func Unwrap(err error) error {
	return errors.Unwrap(err)
}
