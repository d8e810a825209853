package consulkv

import (
	"errors"
	"fmt"
)

// sentinel errors mapped from well-known Consul agent responses
var (
	ErrNotFound    = errors.New("key not found")
	ErrACLDisabled = errors.New("acl support disabled") // agent answers 401 when ACLs are off
	ErrForbidden   = errors.New("forbidden")
	ErrConflict    = errors.New("conflict")
)

// ResponseError represents an HTTP error response from the agent that doesn't
// map to one of the sentinel errors.
type ResponseError struct {
	StatusCode int
	Body       string
	Meta       Meta
}

// Error implements the error interface.
func (e *ResponseError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("consul: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("consul: HTTP %d: %s", e.StatusCode, e.Body)
}

// TransportError indicates the HTTP round-trip itself failed: connection
// refused, timeout, canceled context. The cause is available via Unwrap.
type TransportError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string { return fmt.Sprintf("consul: %s: %v", e.Op, e.Err) }

// Unwrap returns the underlying transport failure.
func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError indicates the agent returned a payload this client could not
// decode, malformed JSON or base64.
type DecodeError struct {
	Key string
	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string { return fmt.Sprintf("consul: decode %q: %v", e.Key, e.Err) }

// Unwrap returns the underlying decode failure.
func (e *DecodeError) Unwrap() error { return e.Err }

// TreeConflictError is returned by GetTree when a key holds a value and also
// prefixes other keys, so the path can't be both a leaf and a branch.
type TreeConflictError struct {
	Path string
}

// Error implements the error interface.
func (e *TreeConflictError) Error() string {
	return fmt.Sprintf("consul: key %q is both a value and a prefix", e.Path)
}
