package routes

import (
	"github.com/dukerupert/gyan/internal/handler"
	"github.com/dukerupert/gyan/internal/router"
)

// RegisterAPIRoutes registers the storefront JSON API.
// Every route runs with a visitor and per-request notification collectors.
func RegisterAPIRoutes(r *router.Router, deps APIDeps) {
	api := r.Group(deps.Visitor, handler.Collect)

	sensitive := []router.Middleware{}
	if deps.Sensitive != nil {
		sensitive = append(sensitive, deps.Sensitive)
	}

	// Cart
	api.Get("/api/cart", deps.CartHandler.Get)
	api.Post("/api/cart/items", deps.CartHandler.Add)
	api.Put("/api/cart/items/{id}", deps.CartHandler.UpdateQuantity)
	api.Delete("/api/cart/items/{id}", deps.CartHandler.Remove)

	// Checkout wizard
	api.Get("/api/checkout", deps.CheckoutHandler.View)
	api.Post("/api/checkout/begin", deps.CheckoutHandler.Begin)
	api.Post("/api/checkout/advance", deps.CheckoutHandler.Advance)
	api.Post("/api/checkout/retreat", deps.CheckoutHandler.Retreat)
	api.Put("/api/checkout/customer", deps.CheckoutHandler.SetCustomer)
	api.Put("/api/checkout/payment-method", deps.CheckoutHandler.SelectPaymentMethod)
	api.Post("/api/checkout/promotion", deps.CheckoutHandler.ApplyPromotion, sensitive...)
	api.Post("/api/checkout/pay", deps.CheckoutHandler.Pay, sensitive...)

	// Orders and catalog
	api.Get("/api/orders/{id}/receipt", deps.OrderHandler.Receipt)
	api.Get("/api/promotions", deps.PromotionHandler.List)

	r.NotFound(handler.NotFoundResponse)
}

// RegisterOpsRoutes registers health and metrics endpoints.
// These routes carry no visitor and set no cookie.
func RegisterOpsRoutes(r *router.Router, deps OpsDeps) {
	r.Get("/healthz", deps.HealthHandler.Check)
	r.Handle("GET", "/metrics", deps.MetricsHandler)
}
