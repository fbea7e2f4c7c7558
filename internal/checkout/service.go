package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/gyan/internal/billing"
	"github.com/dukerupert/gyan/internal/cart"
	"github.com/dukerupert/gyan/internal/domain"
	"github.com/dukerupert/gyan/internal/kvstore"
	"github.com/dukerupert/gyan/internal/notify"
	"github.com/dukerupert/gyan/internal/order"
	"github.com/dukerupert/gyan/internal/pricing"
	"github.com/dukerupert/gyan/internal/promotion"
	"github.com/dukerupert/gyan/internal/telemetry"
)

// PromotionKey is the store key holding the applied promotion.
const PromotionKey = "appliedPromotion"

// ConfirmationMailer sends the order confirmation. email.Service implements it.
type ConfirmationMailer interface {
	SendOrderConfirmation(ctx context.Context, o *domain.Order, receipt []byte) error
}

// Config wires a Service. Carts, Store, Orders, Finalizer and Gateway are
// required; the rest default to no-op or standard implementations.
type Config struct {
	Carts     *cart.Store
	Store     kvstore.Store
	Orders    *order.Log
	Finalizer *order.Finalizer
	Gateway   billing.Gateway

	Catalog   *promotion.Catalog
	Pricer    *pricing.Calculator
	Validator *Validator

	Notifier  notify.Notifier
	Navigator notify.Navigator
	Events    telemetry.EventRecorder
	Metrics   *telemetry.CheckoutMetrics
	Mailer    ConfirmationMailer

	// PaymentTimeout bounds a charge and the order write that follows it.
	// Both run detached from the caller so a dropped request cannot leave
	// money taken without an order. Zero means DefaultPaymentTimeout.
	PaymentTimeout time.Duration

	Currency string
	Logger   *slog.Logger
}

// DefaultPaymentTimeout bounds a payment when Config.PaymentTimeout is unset.
const DefaultPaymentTimeout = 2 * time.Minute

// paymentAttempt is one logical payment. Its idempotency key is reused
// until the gateway gives a definite answer, and a successful result is
// kept until the order is written so a retry never charges twice.
type paymentAttempt struct {
	key    string
	req    order.Request
	method string
	result *billing.PaymentResult
}

// charged reports whether the gateway took the money but no order exists yet.
func (a *paymentAttempt) charged() bool {
	return a != nil && a.result != nil
}

// Service is the single controller of one visitor's cart and checkout.
// All operations are serialized; the gateway call in Pay runs unlocked
// and is guarded by an in-flight flag instead.
type Service struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	wizard  *Wizard
	started bool
	paying  bool
	attempt *paymentAttempt
}

func NewService(cfg Config) (*Service, error) {
	switch {
	case cfg.Carts == nil:
		return nil, errors.New("checkout: cart store is required")
	case cfg.Store == nil:
		return nil, errors.New("checkout: store is required")
	case cfg.Orders == nil:
		return nil, errors.New("checkout: order log is required")
	case cfg.Finalizer == nil:
		return nil, errors.New("checkout: finalizer is required")
	case cfg.Gateway == nil:
		return nil, errors.New("checkout: payment gateway is required")
	}

	if cfg.Catalog == nil {
		cfg.Catalog = promotion.NewDefaultCatalog()
	}
	if cfg.Pricer == nil {
		cfg.Pricer = pricing.NewCalculator(nil)
	}
	if cfg.Validator == nil {
		cfg.Validator = NewValidator()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.NewLogNotifier(cfg.Logger)
	}
	if cfg.Navigator == nil {
		cfg.Navigator = notify.ContextNavigator{}
	}
	if cfg.PaymentTimeout == 0 {
		cfg.PaymentTimeout = DefaultPaymentTimeout
	}
	if cfg.Currency == "" {
		cfg.Currency = "inr"
	}

	return &Service{
		cfg:    cfg,
		logger: cfg.Logger,
		wizard: NewWizard(cfg.Catalog, cfg.Pricer, cfg.Validator),
	}, nil
}

// Cart returns the persisted cart. A corrupt cart reads as empty.
func (s *Service) Cart(ctx context.Context) (domain.Cart, error) {
	c, err := s.cfg.Carts.Load(ctx)
	if errors.Is(err, domain.ErrStorageCorrupt) {
		s.logger.Warn("discarding unreadable cart", "error", err)
		return c, nil
	}
	return c, err
}

// AddItem puts one unit of a service into the cart.
func (s *Service) AddItem(ctx context.Context, id, name string, unitPrice int64, imageRef string) (domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy() {
		return domain.Cart{}, ErrPaymentInProgress
	}

	c, err := s.cfg.Carts.AddItem(ctx, id, name, unitPrice, imageRef)
	if err != nil {
		return domain.Cart{}, err
	}
	s.countMutation("add")

	// A new item enters with quantity 1; anything more was already there.
	if i := c.Find(id); i >= 0 && c.Items[i].Quantity > 1 {
		s.cfg.Notifier.Show(ctx, "Item quantity updated in cart!", notify.Success)
	} else {
		s.cfg.Notifier.Show(ctx, "Service added to cart!", notify.Success)
	}
	s.cartChanged(ctx, c)
	return c, nil
}

// RemoveItem drops id from the cart.
func (s *Service) RemoveItem(ctx context.Context, id string) (domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy() {
		return domain.Cart{}, ErrPaymentInProgress
	}

	c, err := s.cfg.Carts.RemoveItem(ctx, id)
	if err != nil {
		return domain.Cart{}, err
	}
	s.countMutation("remove")
	s.cfg.Notifier.Show(ctx, "Item removed from cart!", notify.Info)
	s.cartChanged(ctx, c)
	return c, nil
}

// UpdateQuantity sets the quantity of id; zero or less removes it.
func (s *Service) UpdateQuantity(ctx context.Context, id string, qty int) (domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy() {
		return domain.Cart{}, ErrPaymentInProgress
	}

	c, err := s.cfg.Carts.SetQuantity(ctx, id, qty)
	if err != nil {
		return domain.Cart{}, err
	}
	s.countMutation("set_quantity")
	s.cartChanged(ctx, c)
	return c, nil
}

// cartChanged refreshes an open checkout after a cart edit. Emptying the
// cart mid-checkout sends the visitor back to the services page.
func (s *Service) cartChanged(ctx context.Context, c domain.Cart) {
	if !s.started || s.wizard.Step() == domain.StepConfirmation {
		return
	}
	s.wizard.SetCart(c)
	s.record(ctx, "cart_updated", map[string]any{
		"itemCount": c.ItemCount(),
		"subtotal":  c.Subtotal(),
	})

	if c.IsEmpty() {
		s.cfg.Notifier.Show(ctx, "Your cart is empty. Please select a service.", notify.Info)
		s.cfg.Navigator.GoTo(ctx, notify.PageServices)
	}
}

// Begin opens a checkout over the persisted cart. An empty or unreadable
// cart sends the visitor back to the services page with ErrCartEmpty.
func (s *Service) Begin(ctx context.Context) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy() {
		return View{}, ErrPaymentInProgress
	}

	c, err := s.cfg.Carts.Load(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrStorageCorrupt) {
			return View{}, err
		}
		s.logger.Warn("cart unreadable at checkout", "error", err)
		telemetry.CaptureError(ctx, err, map[string]interface{}{"op": "checkout.begin"})
	}
	if c.IsEmpty() {
		s.cfg.Notifier.Show(ctx, "Your cart is empty!", notify.Error)
		s.cfg.Navigator.GoTo(ctx, notify.PageServices)
		return View{}, ErrCartEmpty
	}

	s.wizard = NewWizard(s.cfg.Catalog, s.cfg.Pricer, s.cfg.Validator)
	s.wizard.SetCart(c)
	s.restorePromotion(ctx)
	s.started = true

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.CheckoutStarted.Inc()
	}
	s.record(ctx, "checkout_started", map[string]any{
		"itemCount": c.ItemCount(),
		"subtotal":  c.Subtotal(),
	})
	s.cfg.Navigator.GoTo(ctx, notify.PageCheckout)

	return s.view(ctx)
}

// View returns the current checkout.
func (s *Service) View(ctx context.Context) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return View{}, ErrNotStarted
	}
	return s.view(ctx)
}

// Advance validates the current step and moves forward.
func (s *Service) Advance(ctx context.Context) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return View{}, err
	}

	from := s.wizard.Step()
	if err := s.wizard.Advance(ctx); err != nil {
		if s.cfg.Metrics != nil && domain.IsValidationError(err) {
			s.cfg.Metrics.ValidationFailed.WithLabelValues(from.String()).Inc()
		}
		s.record(ctx, "validation_failed", map[string]any{
			"fields": domain.GetValidationFields(err),
		})
		msg := domain.ErrorMessage(err)
		if reason := domain.GetValidationFields(err)["cart"]; reason != "" {
			msg = reason
		}
		s.cfg.Notifier.Show(ctx, msg, notify.Error)
		return View{}, err
	}

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.StepCompleted.WithLabelValues(from.String()).Inc()
	}
	s.record(ctx, "step_completed", map[string]any{
		"from": int(from),
		"to":   int(s.wizard.Step()),
	})
	s.cfg.Notifier.Show(ctx, stepMessage(s.wizard.Step()), notify.Info)
	return s.view(ctx)
}

// Retreat moves back to an earlier step.
func (s *Service) Retreat(ctx context.Context, to domain.Step) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return View{}, err
	}

	from := s.wizard.Step()
	if err := s.wizard.Retreat(to); err != nil {
		return View{}, err
	}
	s.record(ctx, "step_back", map[string]any{
		"from": int(from),
		"to":   int(to),
	})
	s.cfg.Notifier.Show(ctx, stepMessage(to), notify.Info)
	return s.view(ctx)
}

// SetCustomer stages customer details for the customer step.
func (s *Service) SetCustomer(ctx context.Context, details domain.CustomerDetails) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return View{}, err
	}
	s.wizard.SetCustomer(details)
	return s.view(ctx)
}

// SelectPaymentMethod records the payment method.
func (s *Service) SelectPaymentMethod(ctx context.Context, method string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return View{}, err
	}
	if err := s.wizard.SelectPaymentMethod(method); err != nil {
		s.cfg.Notifier.Show(ctx, "Please choose a payment method.", notify.Error)
		return View{}, err
	}
	s.record(ctx, "payment_method_selected", map[string]any{"method": method})
	return s.view(ctx)
}

// ApplyPromotion applies a promo code and persists it. Only one code may
// be applied per checkout.
func (s *Service) ApplyPromotion(ctx context.Context, code string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return View{}, err
	}

	p, err := s.wizard.ApplyPromotion(code)
	if err != nil {
		var perr *promotion.Error
		if errors.As(err, &perr) {
			if s.cfg.Metrics != nil {
				s.cfg.Metrics.PromoRejected.WithLabelValues(string(perr.Kind)).Inc()
			}
			s.record(ctx, "promo_rejected", map[string]any{
				"code":   perr.Code,
				"reason": string(perr.Kind),
			})
		}
		s.cfg.Notifier.Show(ctx, err.Error(), notify.Error)
		return View{}, err
	}

	if err := s.savePromotion(ctx, p); err != nil {
		s.logger.Error("failed to persist applied promotion", "code", p.Code, "error", err)
	}

	snapshot, err := s.wizard.Pricing(ctx)
	if err != nil {
		return View{}, err
	}
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.PromoApplied.WithLabelValues(p.Code).Inc()
	}
	s.record(ctx, "promo_applied", map[string]any{
		"code":     p.Code,
		"discount": snapshot.Discount,
	})
	s.cfg.Notifier.Show(ctx,
		fmt.Sprintf("Promo code %s applied! You saved %s.", p.Code, domain.FormatRupees(snapshot.Discount)),
		notify.Success)

	return s.viewWith(snapshot), nil
}

// Pay charges the gateway for the current total. On success the order is
// finalized and the wizard moves to Confirmation; on failure the session
// stays at the payment step and ErrPaymentFailed is returned. A second
// call while a charge is in flight fails with ErrPaymentInProgress.
//
// The charge and the order write run on a context detached from ctx, so
// once started they complete even if the caller goes away. When the order
// cannot be written after a successful charge, the result is kept and the
// next Pay writes the order without charging again.
func (s *Service) Pay(ctx context.Context) (View, error) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return View{}, ErrNotStarted
	}
	if s.paying {
		s.mu.Unlock()
		return View{}, ErrPaymentInProgress
	}
	attempt, err := s.nextAttempt(ctx)
	if err != nil {
		s.mu.Unlock()
		return View{}, err
	}
	s.paying = true
	s.mu.Unlock()

	work, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.PaymentTimeout)
	defer cancel()

	req, method := attempt.req, attempt.method
	result := attempt.result
	var chargeErr error
	if result == nil {
		s.cfg.Notifier.Show(ctx, "Processing payment...", notify.Info)
		result, chargeErr = s.charge(work, req, method, attempt.key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.paying = false

	if chargeErr != nil {
		// The outcome is unknown; the attempt and its key are kept so a
		// retry cannot be captured twice by the gateway.
		return View{}, s.paymentFailed(work, req, method, result, chargeErr)
	}
	if !result.Success {
		s.attempt = nil
		return View{}, s.paymentFailed(work, req, method, result, nil)
	}
	attempt.result = result

	o, err := s.cfg.Finalizer.Finalize(work, req, result)
	if err != nil {
		s.logger.Error("failed to finalize paid checkout",
			"payment_id", result.PaymentID,
			"error", err,
		)
		telemetry.CaptureError(work, err, map[string]interface{}{
			"payment_id": result.PaymentID,
			"amount":     req.Pricing.Total,
		})
		s.cfg.Notifier.Show(ctx, "Your payment was received but the order could not be saved yet. Please try again to complete it.", notify.Warning)
		return View{}, &domain.Error{Code: domain.EINTERNAL, Op: "checkout.pay", Message: "payment captured but order not recorded", Err: err}
	}
	s.attempt = nil

	if err := s.cfg.Store.Remove(work, PromotionKey); err != nil {
		s.logger.Warn("failed to clear applied promotion", "error", err)
	}
	s.wizard.SetCart(domain.Cart{})
	s.wizard.complete(o)

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.PaymentSucceeded.WithLabelValues(method).Inc()
	}
	s.record(work, "payment_success", map[string]any{
		"orderId": o.OrderID,
		"amount":  o.Pricing.Total,
	})
	s.cfg.Notifier.Show(ctx, "Payment successful! Your order is confirmed.", notify.Success)
	s.cfg.Navigator.GoTo(ctx, notify.PageConfirmation)

	s.sendConfirmation(work, o)

	return s.viewWith(o.Pricing), nil
}

// nextAttempt returns the payment to run. A captured payment is resumed
// as is. Otherwise the checkout is snapshotted, and an unresolved attempt
// keeps its idempotency key while the amount and method are unchanged.
// Callers hold s.mu.
func (s *Service) nextAttempt(ctx context.Context) (*paymentAttempt, error) {
	if s.attempt.charged() {
		return s.attempt, nil
	}

	req, method, err := s.preparePayment(ctx)
	if err != nil {
		return nil, err
	}
	if s.attempt == nil || s.attempt.method != method || s.attempt.req.Pricing.Total != req.Pricing.Total {
		s.attempt = &paymentAttempt{key: uuid.NewString()}
	}
	s.attempt.req = req
	s.attempt.method = method
	return s.attempt, nil
}

// preparePayment validates the payment step and snapshots the checkout.
// Callers hold s.mu.
func (s *Service) preparePayment(ctx context.Context) (order.Request, string, error) {
	switch s.wizard.Step() {
	case domain.StepPaymentMethod:
	case domain.StepConfirmation:
		return order.Request{}, "", ErrCheckoutComplete
	default:
		return order.Request{}, "", domain.Invalid("checkout.pay", "Please complete the previous steps first.")
	}

	if err := s.wizard.ValidateStep(domain.StepPaymentMethod); err != nil {
		s.cfg.Notifier.Show(ctx, "Please choose a payment method.", notify.Error)
		return order.Request{}, "", err
	}
	if err := s.wizard.ValidateStep(domain.StepReviewCart); err != nil {
		return order.Request{}, "", err
	}

	snapshot, err := s.wizard.Pricing(ctx)
	if err != nil {
		return order.Request{}, "", err
	}
	sess := s.wizard.Session()
	return sess.request(snapshot), sess.PaymentMethod, nil
}

func (s *Service) charge(ctx context.Context, req order.Request, method, idempotencyKey string) (*billing.PaymentResult, error) {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.PaymentAttempts.WithLabelValues(method).Inc()
	}
	s.record(ctx, "payment_initiated", map[string]any{
		"method": method,
		"amount": req.Pricing.Total,
	})

	start := time.Now()
	result, err := s.cfg.Gateway.Charge(ctx, billing.ChargeRequest{
		Amount:         req.Pricing.Total,
		Currency:       s.cfg.Currency,
		Method:         method,
		CustomerName:   req.Customer.FullName(),
		CustomerEmail:  req.Customer.Email,
		Description:    fmt.Sprintf("Astrology Gyan consultation (%d items)", req.Cart.ItemCount()),
		IdempotencyKey: idempotencyKey,
		Metadata: map[string]string{
			"visitor_id": domain.VisitorFromContext(ctx),
		},
	})
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.PaymentLatency.Observe(time.Since(start).Seconds())
	}
	if err == nil && result == nil {
		err = errors.New("gateway returned no result")
	}
	return result, err
}

func (s *Service) paymentFailed(ctx context.Context, req order.Request, method string, result *billing.PaymentResult, chargeErr error) error {
	kind := "declined"
	if chargeErr != nil {
		kind = "error"
		s.logger.Error("payment gateway error", "method", method, "error", chargeErr)
		telemetry.CaptureError(ctx, chargeErr, map[string]interface{}{
			"method": method,
			"amount": req.Pricing.Total,
		})
	}
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.PaymentFailed.WithLabelValues(method, kind).Inc()
	}

	data := map[string]any{
		"method": method,
		"amount": req.Pricing.Total,
	}
	if result != nil && result.Reason != "" {
		data["reason"] = result.Reason
	}
	s.record(ctx, "payment_failed", data)
	s.cfg.Notifier.Show(ctx, "Payment failed. Please try again.", notify.Error)

	if chargeErr != nil {
		return fmt.Errorf("%w: %v", ErrPaymentFailed, chargeErr)
	}
	return ErrPaymentFailed
}

// sendConfirmation mails the order with its receipt. Failures are logged
// and never undo the order.
func (s *Service) sendConfirmation(ctx context.Context, o *domain.Order) {
	if s.cfg.Mailer == nil {
		return
	}

	receipt, err := order.RenderReceipt(o)
	if err != nil {
		s.logger.Warn("failed to render receipt for email", "order_id", o.OrderID, "error", err)
		receipt = nil
	}

	if err := s.cfg.Mailer.SendOrderConfirmation(ctx, o, receipt); err != nil {
		s.logger.Error("failed to send order confirmation", "order_id", o.OrderID, "error", err)
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.EmailFailed.Inc()
		}
		return
	}
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.EmailSent.Inc()
	}
	s.cfg.Notifier.Show(ctx, "A confirmation email is on its way.", notify.Success)
}

// Receipt renders the HTML receipt of an order.
func (s *Service) Receipt(ctx context.Context, orderID string) ([]byte, string, error) {
	o, err := s.cfg.Orders.Get(ctx, orderID)
	if err != nil {
		return nil, "", err
	}
	b, err := order.RenderReceipt(o)
	if err != nil {
		return nil, "", err
	}

	s.mu.Lock()
	s.record(ctx, "receipt_downloaded", map[string]any{"orderId": o.OrderID})
	s.mu.Unlock()
	s.cfg.Notifier.Show(ctx, "Receipt downloaded.", notify.Success)

	return b, order.ReceiptFilename(o), nil
}

// ready rejects operations before Begin and while a charge is in flight.
// Callers hold s.mu.
func (s *Service) ready() error {
	if !s.started {
		return ErrNotStarted
	}
	if s.busy() {
		return ErrPaymentInProgress
	}
	return nil
}

// PaymentPending reports whether a payment is in flight or was captured
// without an order yet. Such a session must not be discarded.
func (s *Service) PaymentPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy()
}

// busy reports whether a charge is in flight or a captured payment still
// awaits its order. Callers hold s.mu.
func (s *Service) busy() bool {
	return s.paying || s.attempt.charged()
}

func (s *Service) view(ctx context.Context) (View, error) {
	snapshot, err := s.wizard.Pricing(ctx)
	if err != nil {
		return View{}, err
	}
	return s.viewWith(snapshot), nil
}

func (s *Service) viewWith(snapshot domain.PricingSnapshot) View {
	return s.wizard.Session().view(snapshot)
}

func (s *Service) record(ctx context.Context, eventType string, data map[string]any) {
	if s.cfg.Events == nil {
		return
	}
	if err := s.cfg.Events.Record(ctx, eventType, s.wizard.Step(), data); err != nil {
		s.logger.Warn("failed to record analytics event", "type", eventType, "error", err)
	}
}

func (s *Service) countMutation(op string) {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.CartMutations.WithLabelValues(op).Inc()
	}
}

// savePromotion stores the applied code. The catalog is the source of the
// promotion's terms when it is restored.
func (s *Service) savePromotion(ctx context.Context, p domain.Promotion) error {
	return s.cfg.Store.Set(ctx, PromotionKey, p.Code)
}

// restorePromotion reapplies a promotion persisted by an earlier checkout
// that never completed. Unreadable or unknown entries are dropped.
func (s *Service) restorePromotion(ctx context.Context) {
	raw, err := s.cfg.Store.Get(ctx, PromotionKey)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			s.logger.Warn("failed to read applied promotion", "error", err)
		}
		return
	}

	if !s.wizard.RestorePromotion(strings.TrimSpace(raw)) {
		s.logger.Warn("dropping unknown applied promotion", "value", raw)
		_ = s.cfg.Store.Remove(ctx, PromotionKey)
	}
}

func stepMessage(step domain.Step) string {
	switch step {
	case domain.StepReviewCart:
		return "Step 1 of 4: review your cart."
	case domain.StepCustomerDetails:
		return "Step 2 of 4: enter your details."
	case domain.StepPaymentMethod:
		return "Step 3 of 4: choose a payment method."
	default:
		return "Your order is confirmed."
	}
}
