package middleware

import (
	"time"

	"github.com/felixgeelhaar/mcp-client-go/logging"
)

// DefaultStack returns the recommended middleware stack.
// This includes panic recovery, request ID injection, and logging.
func DefaultStack(logger logging.Logger) []Middleware {
	return []Middleware{
		Recover(),
		RequestID(),
		Logging(logger),
	}
}

// DefaultStackWithTimeout returns the default stack with a timeout middleware.
func DefaultStackWithTimeout(logger logging.Logger, timeout time.Duration) []Middleware {
	return []Middleware{
		Recover(),
		RequestID(),
		Timeout(timeout),
		Logging(logger),
	}
}
