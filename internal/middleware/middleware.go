// Package middleware provides the HTTP middleware of the storefront API:
// request ids, request-scoped loggers, visitor identification, metrics,
// security headers, body limits, timeouts and rate limiting.
package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
)

// contextKey is an unexported type for middleware context keys.
type contextKey string

// Error codes only middleware produces. Handler errors use domain codes.
const (
	codeTooLarge    = "too_large"
	codeRateLimited = "rate_limited"
	codeTimeout     = "timeout"
)

// ============================================================================
// MIDDLEWARE ERROR RESPONSE HELPERS
// ============================================================================
//
// These mirror handler.ErrorResponse but are self-contained to avoid
// circular imports (handler imports middleware for GetLogger).

// respondWithError writes err as JSON, or as plain text when the client
// did not ask for JSON.
func respondWithError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	logger := GetLogger(r.Context())

	attrs := []any{
		"code", code,
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
	}
	if status >= 500 {
		logger.Error("middleware error", attrs...)
	} else {
		logger.Info("middleware error", attrs...)
	}

	if !acceptsJSON(r) {
		http.Error(w, message, status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

// respondTooLarge is a convenience wrapper for 413 errors.
func respondTooLarge(w http.ResponseWriter, r *http.Request) {
	respondWithError(w, r, http.StatusRequestEntityTooLarge, codeTooLarge, "Request body too large")
}

// respondTooManyRequests is a convenience wrapper for 429 errors.
func respondTooManyRequests(w http.ResponseWriter, r *http.Request) {
	respondWithError(w, r, http.StatusTooManyRequests, codeRateLimited, "Too many requests. Please wait a moment and try again.")
}

// acceptsJSON checks if the client prefers JSON responses.
func acceptsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}
