package middleware

import (
	"net/http"

	"github.com/dukerupert/gyan/internal/cookie"
	"github.com/dukerupert/gyan/internal/domain"
)

// Visitor identifies the storefront visitor by the gyan_session cookie,
// issuing one on first contact, and stores the id in the request context.
func Visitor(cfg *cookie.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := cfg.Visitor(w, r)
			ctx := domain.NewContextWithVisitor(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
