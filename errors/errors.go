// Package errors provides the error taxonomy shared by SightKit packages.
//
// ContextualError is the base error type. It records the kind of failure, the
// component and operation that produced it, and an optional status code and
// details. It implements error and Unwrap so it composes with the standard
// errors package.
//
// Usage:
//
//	err := errors.New(errors.KindCapture, "capture", "TakePicture", cause)
//	if errors.IsKind(err, errors.KindCapture) {
//	    // log and keep streaming
//	}
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a failure by how the streaming client reacts to it.
type Kind string

const (
	// KindCapture means the camera was busy or unavailable. Logged; the
	// streaming loop moves on to the next frame.
	KindCapture Kind = "capture"

	// KindTransport is a socket-level failure. It closes the current attempt
	// and hands control to the reconnect policy.
	KindTransport Kind = "transport"

	// KindProtocol is a malformed inbound message. The message is discarded.
	KindProtocol Kind = "protocol"

	// KindService is a well-formed message with status "error". It is shown
	// to the user as a transient notice.
	KindService Kind = "service"

	// KindConfig is an invalid or unreadable configuration.
	KindConfig Kind = "config"

	// KindStorage is a preference store failure.
	KindStorage Kind = "storage"
)

// ContextualError is a structured error type that carries consistent context
// about where and why an error occurred.
type ContextualError struct {
	// Kind is the taxonomy bucket of the failure.
	Kind Kind

	// Component identifies the package that produced the error (e.g. "streaming").
	Component string

	// Operation describes what was being done when the error occurred.
	Operation string

	// StatusCode is an optional HTTP or application-level status code.
	StatusCode int

	// Details holds optional structured metadata about the error.
	Details map[string]any

	// Cause is the underlying error, if any.
	Cause error
}

// New creates a ContextualError.
func New(kind Kind, component, operation string, cause error) *ContextualError {
	return &ContextualError{
		Kind:      kind,
		Component: component,
		Operation: operation,
		Cause:     cause,
	}
}

// Error returns a human-readable representation of the error.
func (e *ContextualError) Error() string {
	base := fmt.Sprintf("[%s] %s %s", e.Component, e.Operation, e.Kind)

	if e.StatusCode != 0 {
		base += fmt.Sprintf(" (status %d)", e.StatusCode)
	}

	if e.Cause != nil {
		base += ": " + e.Cause.Error()
	}

	return base
}

// Unwrap returns the underlying cause, enabling use with errors.Is and errors.As.
func (e *ContextualError) Unwrap() error {
	return e.Cause
}

// WithStatusCode sets the status code and returns the same error for chaining.
func (e *ContextualError) WithStatusCode(code int) *ContextualError {
	e.StatusCode = code
	return e
}

// WithDetails sets the details map and returns the same error for chaining.
func (e *ContextualError) WithDetails(details map[string]any) *ContextualError {
	e.Details = details
	return e
}

// KindOf returns the Kind of the first ContextualError in err's chain, or ""
// when there is none.
func KindOf(err error) Kind {
	var ce *ContextualError
	if stderrors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// IsKind reports whether err's chain contains a ContextualError of the given kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		var ce *ContextualError
		if !stderrors.As(err, &ce) {
			return false
		}
		if ce.Kind == kind {
			return true
		}
		err = ce.Cause
	}
	return false
}

// Capture wraps cause as a KindCapture error.
func Capture(component, operation string, cause error) *ContextualError {
	return New(KindCapture, component, operation, cause)
}

// Transport wraps cause as a KindTransport error.
func Transport(component, operation string, cause error) *ContextualError {
	return New(KindTransport, component, operation, cause)
}

// Protocol wraps cause as a KindProtocol error.
func Protocol(component, operation string, cause error) *ContextualError {
	return New(KindProtocol, component, operation, cause)
}

// Service wraps cause as a KindService error.
func Service(component, operation string, cause error) *ContextualError {
	return New(KindService, component, operation, cause)
}
