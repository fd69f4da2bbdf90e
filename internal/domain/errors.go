package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
// Implementing this interface enables extensible error handling.
type HTTPError interface {
	error
	StatusCode() int
}

// Domain error types implementing HTTPError interface
type (
	// NotFoundError indicates a resource was not found
	NotFoundError struct {
		Message string
	}

	// ValidationError indicates invalid input
	ValidationError struct {
		Message string
	}

	// UnauthorizedError indicates authentication failure
	UnauthorizedError struct {
		Message string
	}

	// ForbiddenError indicates authorization failure
	ForbiddenError struct {
		Message string
	}
)

func (e *NotFoundError) Error() string     { return e.Message }
func (e *ValidationError) Error() string   { return e.Message }
func (e *UnauthorizedError) Error() string { return e.Message }
func (e *ForbiddenError) Error() string    { return e.Message }

func (e *NotFoundError) StatusCode() int     { return http.StatusNotFound }
func (e *ValidationError) StatusCode() int   { return http.StatusBadRequest }
func (e *UnauthorizedError) StatusCode() int { return http.StatusUnauthorized }
func (e *ForbiddenError) StatusCode() int    { return http.StatusForbidden }

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// ConflictError represents a resource conflict with details about the existing resource
type ConflictError struct {
	Message      string // Human-readable error message
	ResourceType string // Type of resource (chat, file, folder)
	ResourceID   string // ID of the existing/conflicting resource
}

func (e *ConflictError) Error() string {
	return e.Message
}

func (e *ConflictError) StatusCode() int {
	return http.StatusConflict
}

// Is allows errors.Is() to match against ErrConflict
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// Stream failure taxonomy.
//
// Transport failures (network error, non-2xx status, mid-stream read error)
// are distinct from content failures (transport succeeded but nothing usable
// arrived), and both are distinct from user-initiated cancellation.

// ErrStreamCancelled marks a stream ended by the caller, not by a fault.
var ErrStreamCancelled = errors.New("stream cancelled")

// StreamTransportError indicates the byte stream itself failed: the request
// could not be issued, the server answered outside the 2xx range, or a read
// failed mid-stream.
type StreamTransportError struct {
	Status int    // HTTP status, 0 when the request never completed
	Detail string // truncated body excerpt or underlying error text
	Err    error  // wrapped cause, may be nil
}

func (e *StreamTransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("stream transport failed (%d): %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("stream transport failed: %s", e.Detail)
}

func (e *StreamTransportError) Unwrap() error { return e.Err }

// StreamContentError indicates the transport reported success but the stream
// carried no usable payload: either zero non-empty chunks arrived
// (EmptyStream) or chunks arrived with no extractable content.
type StreamContentError struct {
	EmptyStream bool
}

func (e *StreamContentError) Error() string {
	if e.EmptyStream {
		return "stream ended without any data"
	}
	return "stream ended without extractable content"
}

// StreamRemoteError carries an explicit error event emitted inside the
// stream by the upstream endpoint.
type StreamRemoteError struct {
	Message string
	Details string
}

func (e *StreamRemoteError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("upstream error: %s (%s)", e.Message, e.Details)
	}
	return fmt.Sprintf("upstream error: %s", e.Message)
}
