package middleware

import (
	"context"
	"time"

	"github.com/felixgeelhaar/mcp-client-go/logging"
	"github.com/felixgeelhaar/mcp-client-go/protocol"
)

// Logging returns middleware that logs request details.
// Completed requests are logged at info level, server error responses at
// warn level, failed calls at error level and notifications (null id) at
// debug level.
func Logging(logger logging.Logger) Middleware {
	logger = logging.OrNop(logger)

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			start := time.Now()

			resp, err := next(ctx, req)

			fields := []logging.Field{
				logging.F("method", req.Method),
				logging.F("id", req.ID.String()),
				logging.F("duration", time.Since(start)),
			}
			if requestID := RequestIDFromContext(ctx); requestID != "" {
				fields = append(fields, logging.F("request_id", requestID))
			}

			switch {
			case err != nil:
				fields = append(fields, logging.F("error", err.Error()))
				logger.Error("request failed", fields...)
			case resp != nil && resp.Error != nil:
				fields = append(fields,
					logging.F("code", resp.Error.Code),
					logging.F("message", resp.Error.Message),
				)
				logger.Warn("request returned error", fields...)
			case req.ID.IsZero():
				logger.Debug("notification sent", fields...)
			default:
				logger.Info("request completed", fields...)
			}

			return resp, err
		}
	}
}
