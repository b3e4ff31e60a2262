package client

import (
	"errors"
	"fmt"
)

// RequestError reports a backend response with a non-2xx status code.
type RequestError struct {
	Op         string
	Status     int
	StatusText string
	// Body holds the (possibly truncated) response body, usually the
	// backend's {"detail": ...} payload.
	Body string
}

func (e *RequestError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("HTTP %d: %s", e.Status, e.StatusText)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.Status, e.StatusText)
}

// ConnectivityError reports that no response was received from the backend.
// It carries the configured base URL so the user can spot a misconfiguration.
type ConnectivityError struct {
	Op      string
	BaseURL string
	Err     error
}

func (e *ConnectivityError) Error() string {
	return e.Hint()
}

// Hint is the human-readable message shown to the user.
func (e *ConnectivityError) Hint() string {
	return "cannot connect to server. Please check if backend is running on " + e.BaseURL
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// ValidationError is raised on the client before any request is made, for
// example an empty reply or a malformed bulk upload file.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// IsConnectivity reports whether err (or anything it wraps) is a ConnectivityError.
func IsConnectivity(err error) bool {
	var target *ConnectivityError
	return errors.As(err, &target)
}

// IsRequest reports whether err (or anything it wraps) is a RequestError.
func IsRequest(err error) bool {
	var target *RequestError
	return errors.As(err, &target)
}

// IsValidation reports whether err (or anything it wraps) is a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// StatusCode returns the HTTP status carried by a RequestError in err's
// chain, or 0 if there is none.
func StatusCode(err error) int {
	var target *RequestError
	if errors.As(err, &target) {
		return target.Status
	}
	return 0
}
