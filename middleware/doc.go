// Package middleware provides client-side middleware for outgoing MCP
// requests.
//
// Middleware follows the standard pattern where each middleware wraps the
// next handler in the chain. On the client the innermost handler is the
// transport's SendRequest, so middleware sees every request before it is
// written and every response or error after it returns.
//
// # Basic Usage
//
// Create and compose middleware:
//
//	chain := middleware.Chain(
//	    middleware.Recover(),
//	    middleware.RequestID(),
//	    middleware.Logging(logger),
//	)
//	send := chain(transport.SendRequest)
//
// # Available Middleware
//
//   - Recover: Converts panics into errors
//   - RequestID: Attaches a correlation id, forwarded as X-Request-Id
//   - BearerToken: Attaches a per-call Authorization header
//   - Timeout, TimeoutByMethod: Enforce request deadlines
//   - SizeLimit: Rejects oversized params before they are sent
//   - RateLimit, RateLimitByMethod, RateLimitByTool: Throttle outgoing calls
//   - Logging: Logs request details and timing
//   - OTel: OpenTelemetry client spans and metrics
//
// # Default Stacks
//
//	// Recover + RequestID + Logging
//	stack := middleware.DefaultStack(logger)
//
//	// Recover + RequestID + Timeout + Logging
//	stack := middleware.DefaultStackWithTimeout(logger, 30*time.Second)
package middleware
