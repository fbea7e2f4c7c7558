package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dukerupert/gyan/internal/checkout"
	"github.com/dukerupert/gyan/internal/domain"
	"github.com/dukerupert/gyan/internal/handler"
)

// CheckoutHandler handles the /api/checkout routes. Each route returns the
// checkout view after the operation.
type CheckoutHandler struct {
	sessions Sessions
	logger   *slog.Logger
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(sessions Sessions, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{sessions: sessions, logger: orDefault(logger)}
}

// RetreatRequest is the body of POST /api/checkout/retreat.
type RetreatRequest struct {
	Step domain.Step `json:"step"`
}

// PaymentMethodRequest is the body of PUT /api/checkout/payment-method.
type PaymentMethodRequest struct {
	Method string `json:"method"`
}

// PromotionRequest is the body of POST /api/checkout/promotion.
type PromotionRequest struct {
	Code string `json:"code"`
}

// View handles GET /api/checkout
func (h *CheckoutHandler) View(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(ctx context.Context, svc *checkout.Service) (checkout.View, error) {
		return svc.View(ctx)
	})
}

// Begin handles POST /api/checkout/begin
func (h *CheckoutHandler) Begin(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(ctx context.Context, svc *checkout.Service) (checkout.View, error) {
		return svc.Begin(ctx)
	})
}

// Advance handles POST /api/checkout/advance
func (h *CheckoutHandler) Advance(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(ctx context.Context, svc *checkout.Service) (checkout.View, error) {
		return svc.Advance(ctx)
	})
}

// Retreat handles POST /api/checkout/retreat
func (h *CheckoutHandler) Retreat(w http.ResponseWriter, r *http.Request) {
	var req RetreatRequest
	if err := decode(r, "checkout.retreat", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	h.run(w, r, func(ctx context.Context, svc *checkout.Service) (checkout.View, error) {
		return svc.Retreat(ctx, req.Step)
	})
}

// SetCustomer handles PUT /api/checkout/customer
//
// The details are staged; they are validated and committed when the
// visitor advances past the customer details step.
func (h *CheckoutHandler) SetCustomer(w http.ResponseWriter, r *http.Request) {
	var req domain.CustomerDetails
	if err := decode(r, "checkout.customer", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	h.run(w, r, func(ctx context.Context, svc *checkout.Service) (checkout.View, error) {
		return svc.SetCustomer(ctx, req)
	})
}

// SelectPaymentMethod handles PUT /api/checkout/payment-method
func (h *CheckoutHandler) SelectPaymentMethod(w http.ResponseWriter, r *http.Request) {
	var req PaymentMethodRequest
	if err := decode(r, "checkout.payment_method", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	h.run(w, r, func(ctx context.Context, svc *checkout.Service) (checkout.View, error) {
		return svc.SelectPaymentMethod(ctx, req.Method)
	})
}

// ApplyPromotion handles POST /api/checkout/promotion
func (h *CheckoutHandler) ApplyPromotion(w http.ResponseWriter, r *http.Request) {
	var req PromotionRequest
	if err := decode(r, "checkout.promotion", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	h.run(w, r, func(ctx context.Context, svc *checkout.Service) (checkout.View, error) {
		return svc.ApplyPromotion(ctx, req.Code)
	})
}

// Pay handles POST /api/checkout/pay
//
// Response codes:
//   - 200 OK: payment succeeded, the view carries the order
//   - 402 Payment Required: payment declined, the session is kept for a retry
//   - 409 Conflict: a payment for this visitor is already in flight
func (h *CheckoutHandler) Pay(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(ctx context.Context, svc *checkout.Service) (checkout.View, error) {
		v, err := svc.Pay(ctx)
		if err == nil && v.Order != nil {
			h.logger.Info("order placed",
				"order_id", v.Order.OrderID,
				"total", v.Order.Pricing.Total,
				"visitor_id", domain.VisitorFromContext(ctx),
			)
		}
		return v, err
	})
}

func (h *CheckoutHandler) run(w http.ResponseWriter, r *http.Request, op func(context.Context, *checkout.Service) (checkout.View, error)) {
	svc, ok := service(w, r, h.sessions)
	if !ok {
		return
	}

	v, err := op(r.Context(), svc)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, r, http.StatusOK, v)
}
