// Package cookie provides helpers for the storefront visitor cookie.
// The visitor id it carries selects the visitor's cart, checkout session
// and order history.
package cookie

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// VisitorCookieName identifies the storefront visitor.
const VisitorCookieName = "gyan_session"

// DefaultMaxAge keeps a visitor's cart for 30 days of inactivity.
const DefaultMaxAge = int(30 * 24 * time.Hour / time.Second)

// Config holds cookie configuration.
type Config struct {
	// Domain scopes the cookie. Empty means host-only.
	Domain string

	// Secure determines whether cookies require HTTPS.
	// Should be true in production, false in development.
	Secure bool

	// MaxAge in seconds. Zero uses DefaultMaxAge.
	MaxAge int
}

// NewConfig creates a new cookie configuration.
//
// Example:
//
//	cfg := cookie.NewConfig("astrologygyan.com", true)  // production
//	cfg := cookie.NewConfig("", false)                  // development
func NewConfig(domain string, secure bool) *Config {
	return &Config{
		Domain: domain,
		Secure: secure,
		MaxAge: DefaultMaxAge,
	}
}

// SetSession sets an HttpOnly, SameSite=Lax cookie on path "/".
func (c *Config) SetSession(w http.ResponseWriter, name, value string) {
	maxAge := c.MaxAge
	if maxAge == 0 {
		maxAge = DefaultMaxAge
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Domain:   c.Domain,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSession removes a cookie by setting MaxAge to -1.
// Domain must match the original cookie's domain.
func (c *Config) ClearSession(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Domain:   c.Domain,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Get retrieves a cookie value from the request.
// Returns empty string if cookie not found.
func Get(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// Visitor returns the visitor id carried by r, issuing a new one when the
// cookie is missing or malformed. The cookie is refreshed on every call so
// the max age counts from the last visit.
func (c *Config) Visitor(w http.ResponseWriter, r *http.Request) string {
	id := Get(r, VisitorCookieName)
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	c.SetSession(w, VisitorCookieName, id)
	return id
}
