// Package checkout drives the four-step checkout wizard: review cart,
// customer details, payment method and confirmation.
package checkout

import (
	"context"

	"github.com/dukerupert/gyan/internal/domain"
	"github.com/dukerupert/gyan/internal/pricing"
	"github.com/dukerupert/gyan/internal/promotion"
)

// Wizard applies the step rules to a Session. It is not safe for
// concurrent use; Service serializes access.
type Wizard struct {
	session   *Session
	catalog   *promotion.Catalog
	pricer    *pricing.Calculator
	validator *Validator
}

// NewWizard creates a wizard over a fresh session at the review step.
// Nil collaborators fall back to the default catalog, GST pricing and
// the standard validator.
func NewWizard(catalog *promotion.Catalog, pricer *pricing.Calculator, v *Validator) *Wizard {
	if catalog == nil {
		catalog = promotion.NewDefaultCatalog()
	}
	if pricer == nil {
		pricer = pricing.NewCalculator(nil)
	}
	if v == nil {
		v = NewValidator()
	}
	return &Wizard{
		session:   NewSession(),
		catalog:   catalog,
		pricer:    pricer,
		validator: v,
	}
}

// Session exposes the underlying session.
func (w *Wizard) Session() *Session {
	return w.session
}

func (w *Wizard) Step() domain.Step {
	return w.session.Step
}

// SetCart replaces the cart snapshot. An applied promotion stays applied;
// its discount drops to zero while the subtotal is below its minimum.
func (w *Wizard) SetCart(c domain.Cart) {
	w.session.Cart = c.Clone()
}

// ValidateStep checks the entry rules of step against the session.
func (w *Wizard) ValidateStep(step domain.Step) error {
	const op = "checkout.validate"

	switch step {
	case domain.StepReviewCart:
		if w.session.Cart.IsEmpty() {
			return domain.NewValidationError(op, "cart", "Your cart is empty. Please select a service first.")
		}
		return nil
	case domain.StepCustomerDetails:
		return w.validator.ValidateCustomer(op, w.session.staged)
	case domain.StepPaymentMethod:
		if !domain.IsPaymentMethod(w.session.PaymentMethod) {
			return domain.NewValidationError(op, "paymentMethod", "Please choose a payment method.")
		}
		return nil
	default:
		return ErrInvalidStep
	}
}

// Advance validates the current step and moves to the next one. On failure
// the step is unchanged. The payment step cannot be advanced directly:
// Confirmation is reached only through a successful payment.
func (w *Wizard) Advance(ctx context.Context) error {
	s := w.session
	switch s.Step {
	case domain.StepPaymentMethod:
		return ErrConfirmationPayment
	case domain.StepConfirmation:
		return ErrCheckoutComplete
	}

	if err := w.ValidateStep(s.Step); err != nil {
		return err
	}

	if s.Step == domain.StepCustomerDetails {
		s.Customer = s.staged
	}
	s.Step++
	return nil
}

// Retreat moves back to an earlier step. Entered customer details are kept.
func (w *Wizard) Retreat(to domain.Step) error {
	s := w.session
	if s.Step == domain.StepConfirmation {
		return ErrCheckoutComplete
	}
	if !to.Valid() || to >= s.Step {
		return ErrInvalidStep
	}
	s.Step = to
	return nil
}

// SetCustomer stages details. They replace the session's customer only
// when the customer step validates.
func (w *Wizard) SetCustomer(details domain.CustomerDetails) {
	w.session.staged = normalizeCustomer(details)
}

// SelectPaymentMethod records one of domain.PaymentMethods.
func (w *Wizard) SelectPaymentMethod(method string) error {
	if !domain.IsPaymentMethod(method) {
		return domain.NewValidationError("checkout.payment_method", "paymentMethod", "Please choose a valid payment method.")
	}
	w.session.PaymentMethod = method
	return nil
}

// ApplyPromotion applies code against the current subtotal. Once a code is
// applied the session is locked and later calls fail with
// promotion.KindAlreadyApplied. On any error the session is unchanged.
func (w *Wizard) ApplyPromotion(code string) (domain.Promotion, error) {
	if w.session.Promotion != nil {
		return domain.Promotion{}, &promotion.Error{
			Kind: promotion.KindAlreadyApplied,
			Code: domain.CanonicalCode(code),
		}
	}

	p, err := w.catalog.Apply(code, w.session.Cart.Subtotal())
	if err != nil {
		return domain.Promotion{}, err
	}
	w.session.Promotion = &p
	return p, nil
}

// RestorePromotion reinstates a previously applied promotion code, e.g.
// one read back from storage. Unknown codes are ignored.
func (w *Wizard) RestorePromotion(code string) bool {
	known, ok := w.catalog.Lookup(code)
	if !ok {
		return false
	}
	w.session.Promotion = &known
	return true
}

// Pricing recomputes the snapshot from the cart and applied promotion.
func (w *Wizard) Pricing(ctx context.Context) (domain.PricingSnapshot, error) {
	return w.pricer.Calculate(ctx, w.session.Cart, w.session.Promotion)
}

// complete moves to Confirmation with the finalized order.
func (w *Wizard) complete(o *domain.Order) {
	w.session.Order = o
	w.session.Step = domain.StepConfirmation
}
