// Package core provides configuration and the error taxonomy shared by the advisor service.
package core

import (
	"errors"
	"fmt"
)

// Predefined errors for common failure scenarios.
var (
	// ErrNotConfigured indicates that a required credential or connection setting is absent.
	ErrNotConfigured = errors.New("missing configuration")

	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrTransport indicates that an upstream service call failed or returned a non-success status.
	ErrTransport = errors.New("upstream request failed")

	// ErrInvalidInput indicates that tool or request input failed validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited indicates that the caller exceeded its request allowance.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInternal indicates an unexpected failure. Details are logged, never returned to callers.
	ErrInternal = errors.New("internal error")
)

// AdvisorError wraps errors with operation context.
//
// Example:
//
//	err := &AdvisorError{
//	    Op:  "Embed",
//	    Err: ErrNotConfigured,
//	}
//	// Error() returns: "advisor: Embed: missing configuration"
type AdvisorError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message.
//
// The format is: "advisor: <Op>: <Err>"
func (e *AdvisorError) Error() string {
	return fmt.Sprintf("advisor: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error so errors.Is and errors.As see through the wrapper.
func (e *AdvisorError) Unwrap() error {
	return e.Err
}

// NewAdvisorError creates a new AdvisorError wrapping the given error.
//
// If err is nil, returns nil, which allows unconditional wrapping:
//
//	return NewAdvisorError("Search", err)
func NewAdvisorError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &AdvisorError{
		Op:  op,
		Err: err,
	}
}

// TransportError describes an upstream call that failed at the network level or
// returned a non-success status. It matches ErrTransport under errors.Is.
type TransportError struct {
	// Service names the upstream (e.g. "embedding", "catalog", "completion").
	Service string

	// StatusCode is the upstream HTTP status, or 0 when no response was received.
	StatusCode int

	// Body holds the upstream response body, if any.
	Body string

	// Err is the underlying network or decoding error, if any.
	Err error
}

// Error returns a formatted error message.
func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("%s: API request failed with status %d: %s", e.Service, e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: API request failed with status %d", e.Service, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Service, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Service, ErrTransport)
	}
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrTransport.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}
