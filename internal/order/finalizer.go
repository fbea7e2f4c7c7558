package order

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/gyan/internal/billing"
	"github.com/dukerupert/gyan/internal/domain"
	"github.com/dukerupert/gyan/internal/telemetry"
)

// IDPrefix starts every order id.
const IDPrefix = "AG-"

// ErrPaymentFailed is returned when a checkout is finalized without a
// successful payment.
var ErrPaymentFailed = &domain.Error{
	Code:    domain.EPAYMENT,
	Message: "Payment failed. Please try again.",
}

// Request is the checkout state an order is made from.
type Request struct {
	Cart          domain.Cart
	Customer      domain.CustomerDetails
	Pricing       domain.PricingSnapshot
	PaymentMethod string
	Promotion     *domain.Promotion
}

// CartClearer empties the visitor's cart once the order is written.
type CartClearer interface {
	Clear(ctx context.Context) error
}

// Finalizer turns a paid checkout into an order.
type Finalizer struct {
	log     *Log
	cart    CartClearer
	metrics *telemetry.CheckoutMetrics
	logger  *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewFinalizer creates a finalizer. metrics may be nil.
func NewFinalizer(log *Log, cart CartClearer, metrics *telemetry.CheckoutMetrics, logger *slog.Logger) *Finalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Finalizer{
		log:     log,
		cart:    cart,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Finalize writes an order for req when result reports a successful payment,
// then clears the cart. Nothing is written when the payment failed.
//
// The order is a deep copy: later changes to req never reach it.
func (f *Finalizer) Finalize(ctx context.Context, req Request, result *billing.PaymentResult) (*domain.Order, error) {
	const op = "order.finalize"

	if result == nil || !result.Success {
		return nil, ErrPaymentFailed
	}
	if req.Cart.IsEmpty() {
		return nil, domain.Invalid(op, "cannot create an order from an empty cart")
	}

	paymentID := result.PaymentID
	if paymentID == "" {
		paymentID = "pay_" + f.newID()
	}

	o := domain.Order{
		OrderID:       IDPrefix + f.newID(),
		PaymentID:     paymentID,
		CreatedAt:     f.now().UTC(),
		Status:        domain.OrderStatusConfirmed,
		Customer:      req.Customer,
		Items:         req.Cart.Clone().Items,
		Pricing:       req.Pricing,
		PaymentMethod: req.PaymentMethod,
	}
	if req.Promotion != nil {
		p := *req.Promotion
		o.Promotion = &p
	}

	if err := f.log.Append(ctx, o); err != nil {
		return nil, err
	}

	// The order is durable at this point; a cart that fails to clear is
	// only stale and gets overwritten by the next visit.
	if err := f.cart.Clear(ctx); err != nil {
		f.logger.Error("failed to clear cart after order",
			"order_id", o.OrderID,
			"error", err,
		)
	}

	if f.metrics != nil {
		f.metrics.OrdersCreated.Inc()
		f.metrics.OrderValue.Observe(float64(o.Pricing.Total))
		f.metrics.OrderItemCount.Observe(float64(domain.Cart{Items: o.Items}.ItemCount()))
	}

	f.logger.Info("order created",
		"order_id", o.OrderID,
		"payment_id", o.PaymentID,
		"total", o.Pricing.Total,
	)

	out := o
	out.Items = domain.Cart{Items: o.Items}.Clone().Items
	return &out, nil
}
