// Package api implements the storefront JSON API: cart, checkout wizard,
// promotions and order receipts. Every handler works on the checkout
// service of the visitor identified by middleware.Visitor.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/dukerupert/gyan/internal/checkout"
	"github.com/dukerupert/gyan/internal/domain"
	"github.com/dukerupert/gyan/internal/handler"
)

// Sessions resolves the checkout service of a visitor.
type Sessions interface {
	For(ctx context.Context, visitorID string) (*checkout.Service, error)
}

// service returns the caller's checkout service, writing the error
// response itself when there is none.
func service(w http.ResponseWriter, r *http.Request, sessions Sessions) (*checkout.Service, bool) {
	svc, err := sessions.For(r.Context(), domain.VisitorFromContext(r.Context()))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return nil, false
	}
	return svc, true
}

// decode reads a JSON request body into dst.
func decode(r *http.Request, op string, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Invalid(op, "Request body is required")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.Invalid(op, "Request body too large")
		}
		return domain.Invalid(op, "Request body is not valid JSON")
	}
	return nil
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
