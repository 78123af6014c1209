package middleware

import (
	"context"
	"time"

	"github.com/felixgeelhaar/mcp-client-go/protocol"
)

// Timeout returns middleware that enforces a request deadline.
// If no response arrives within d, the call's context is cancelled and
// the transport returns context.DeadlineExceeded.
func Timeout(d time.Duration) Middleware {
	return TimeoutByMethod(d, nil)
}

// TimeoutByMethod is like Timeout but lets individual methods override the
// default deadline. A zero duration disables the deadline for that method.
func TimeoutByMethod(d time.Duration, perMethod map[string]time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			timeout := d
			if override, ok := perMethod[req.Method]; ok {
				timeout = override
			}
			if timeout <= 0 {
				return next(ctx, req)
			}

			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next(ctx, req)
		}
	}
}
