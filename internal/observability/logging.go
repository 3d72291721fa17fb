// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Logger is the global structured logger instance used throughout the application.
var Logger *slog.Logger

// LogContextKey is a type for context keys used by the logging package.
type LogContextKey string

// Context keys for logging
const (
	RequestIDKey LogContextKey = "request_id"
	AccountKey   LogContextKey = "account"
	TraceIDKey   LogContextKey = "trace_id"
)

// ctxHandler is a slog.Handler that adds context values to the log record.
type ctxHandler struct {
	slog.Handler
}

// Handle adds context values to the record before passing it to the underlying handler.
func (h *ctxHandler) Handle(ctx context.Context, r slog.Record) error {
	if rid, ok := ctx.Value(RequestIDKey).(string); ok {
		r.AddAttrs(slog.String("request_id", rid))
	}
	if acct, ok := ctx.Value(AccountKey).(string); ok {
		r.AddAttrs(slog.String("account", acct))
	}
	if tid, ok := ctx.Value(TraceIDKey).(string); ok {
		r.AddAttrs(slog.String("trace_id", tid))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ctxHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ctxHandler{h.Handler.WithAttrs(attrs)}
}

func (h *ctxHandler) WithGroup(name string) slog.Handler {
	return &ctxHandler{h.Handler.WithGroup(name)}
}

func init() {
	Logger = NewLogger(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))
}

// NewLogger builds a context-aware logger. Production gets JSON output,
// everything else the text handler.
func NewLogger(env, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if env == "production" || env == "prod" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(&ctxHandler{handler})
}

// SetLogger replaces the global logger.
func SetLogger(l *slog.Logger) {
	if l != nil {
		Logger = l
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithAccount returns a new context carrying the authenticated account id.
func WithAccount(ctx context.Context, account string) context.Context {
	return context.WithValue(ctx, AccountKey, account)
}

// WithRequestID returns a new context carrying the request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// WithTraceID returns a new context carrying the trace id.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey, id)
}

// LedgerLogger provides structured logging for ledger transitions.
type LedgerLogger struct {
	component string
}

// NewLedgerLogger creates a LedgerLogger for the given component.
func NewLedgerLogger(component string) *LedgerLogger {
	return &LedgerLogger{component: component}
}

// LogCommitted logs a committed transition.
func (l *LedgerLogger) LogCommitted(ctx context.Context, op string, fields map[string]interface{}) {
	attrs := []any{
		slog.String("component", l.component),
		slog.String("operation", op),
		slog.String("outcome", "committed"),
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	Logger.InfoContext(ctx, "ledger transition", attrs...)
}

// LogRejected logs a rejected transition. Rejections are expected traffic and
// logged at debug unless the failure is internal.
func (l *LedgerLogger) LogRejected(ctx context.Context, op, code string, err error) {
	attrs := []any{
		slog.String("component", l.component),
		slog.String("operation", op),
		slog.String("outcome", "rejected"),
		slog.String("code", code),
		slog.String("error", err.Error()),
	}
	if code == "INTERNAL_ERROR" || code == "ORACLE_UNAVAILABLE" {
		Logger.ErrorContext(ctx, "ledger transition failed", attrs...)
		return
	}
	Logger.DebugContext(ctx, "ledger transition rejected", attrs...)
}

// LogError logs a non-transition error such as a failed event publish.
func (l *LedgerLogger) LogError(ctx context.Context, err error, operation string) {
	Logger.ErrorContext(ctx, "ledger error",
		slog.String("component", l.component),
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}
