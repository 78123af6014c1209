package transport

import (
	"errors"
	"fmt"
)

// Sentinel errors for in-flight failures.
var (
	// ErrConnectionClosed is returned when the transport is not started,
	// has been closed, or the peer went away.
	ErrConnectionClosed = errors.New("transport: connection closed")

	// ErrTimeout is returned when no response arrives within the
	// request timeout.
	ErrTimeout = errors.New("transport: request timed out")

	// ErrDuplicateID is returned when a request reuses the id of one that
	// is still outstanding.
	ErrDuplicateID = errors.New("transport: duplicate request id")
)

// SpawnError reports that the server process could not be started.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("transport: spawn %q: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ConnectionError reports that a network endpoint could not be reached.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("transport: connect %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// HTTPError reports a non-2xx HTTP status. Body holds the start of the
// response body for diagnostics.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("transport: http status %s", e.Status)
	}
	return fmt.Sprintf("transport: http status %s: %s", e.Status, e.Body)
}

// ProtocolError reports a peer reply that is not a valid answer to the
// request: an unparseable body, a missing response, a wrong envelope kind,
// or a mismatched id.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport: protocol error: %s: %v", e.Reason, e.Err)
	}
	return "transport: protocol error: " + e.Reason
}

func (e *ProtocolError) Unwrap() error { return e.Err }
