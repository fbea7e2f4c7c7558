package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dukerupert/gyan/internal/domain"
)

const loggerKey contextKey = "logger"

// WithRequestLogger stores a logger tagged with the request's method, path,
// request id, client IP and visitor. Handlers fetch it with GetLogger, so
// every line they log can be joined back to the visitor's checkout.
//
// Place it after RequestID, WithClientIP and Visitor.
func WithRequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			attrs := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			}
			for _, a := range []struct{ key, val string }{
				{"request_id", GetRequestID(ctx)},
				{"client_ip", GetClientIPFromContext(ctx)},
				{"visitor_id", domain.VisitorFromContext(ctx)},
			} {
				if a.val != "" {
					attrs = append(attrs, slog.String(a.key, a.val))
				}
			}

			ctx = context.WithValue(ctx, loggerKey, base.With(attrs...))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetLogger returns the request logger, else fallback, else slog.Default().
func GetLogger(ctx context.Context, fallback ...*slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	if len(fallback) > 0 && fallback[0] != nil {
		return fallback[0]
	}
	return slog.Default()
}
