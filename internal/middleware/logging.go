package middleware

import (
	"log/slog"
	"time"

	"credledger/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in and out.
const RequestIDHeader = "X-Request-ID"

// RequestID assigns every request an id, keeping one supplied by the caller.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid := c.Get(RequestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Locals("requestid", rid)
		c.Set(RequestIDHeader, rid)
		return c.Next()
	}
}

// ContextMiddleware injects request ID and trace ID from Fiber locals into the request context.
// The account is added by the auth middleware once the token is verified.
func ContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()

		if rid, ok := c.Locals("requestid").(string); ok {
			ctx = observability.WithRequestID(ctx, rid)
		}
		if tid, ok := c.Locals("traceID").(string); ok {
			ctx = observability.WithTraceID(ctx, tid)
		}

		c.SetUserContext(ctx)
		return c.Next()
	}
}

// StructuredLogger returns a Fiber middleware for logging requests using slog
func StructuredLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		fields := []any{
			slog.Int("status", c.Response().StatusCode()),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("ip", c.IP()),
			slog.Duration("latency", time.Since(start)),
		}

		// InfoContext/ErrorContext let the context handler pick up request_id and account.
		if err != nil {
			fields = append(fields, slog.String("error", err.Error()))
			observability.Logger.ErrorContext(c.UserContext(), "request failed", fields...)
		} else {
			observability.Logger.InfoContext(c.UserContext(), "request processed", fields...)
		}

		return err
	}
}
