package routes

import (
	"net/http"

	"github.com/dukerupert/gyan/internal/handler/api"
	"github.com/dukerupert/gyan/internal/router"
)

// APIDeps contains dependencies for the storefront API routes
type APIDeps struct {
	CartHandler      *api.CartHandler
	CheckoutHandler  *api.CheckoutHandler
	OrderHandler     *api.OrderHandler
	PromotionHandler *api.PromotionHandler

	// Visitor identifies the caller by cookie. Required.
	Visitor router.Middleware

	// Sensitive throttles payment and promo code attempts. Optional.
	Sensitive router.Middleware
}

// OpsDeps contains dependencies for operational routes
type OpsDeps struct {
	HealthHandler  *api.HealthHandler
	MetricsHandler http.Handler
}
