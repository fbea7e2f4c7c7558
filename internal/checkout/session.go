package checkout

import (
	"github.com/dukerupert/gyan/internal/domain"
	"github.com/dukerupert/gyan/internal/order"
)

// Session is the state of one visitor's checkout. It replaces any
// page-global state: every wizard operation reads and writes a Session.
type Session struct {
	Step          domain.Step
	Cart          domain.Cart
	Promotion     *domain.Promotion
	Customer      domain.CustomerDetails
	PaymentMethod string

	// Order is set once payment succeeds and the wizard reaches Confirmation.
	Order *domain.Order

	// staged holds customer details that have not yet passed validation.
	staged domain.CustomerDetails
}

func NewSession() *Session {
	return &Session{Step: domain.StepReviewCart}
}

// StagedCustomer returns details entered but not yet committed.
func (s *Session) StagedCustomer() domain.CustomerDetails {
	return s.staged
}

// request builds the order input from the session at the given pricing.
func (s *Session) request(pricing domain.PricingSnapshot) order.Request {
	req := order.Request{
		Cart:          s.Cart.Clone(),
		Customer:      s.Customer,
		Pricing:       pricing,
		PaymentMethod: s.PaymentMethod,
	}
	if s.Promotion != nil {
		p := *s.Promotion
		req.Promotion = &p
	}
	return req
}

// View is the JSON shape of a session.
type View struct {
	Step          domain.Step            `json:"step"`
	StepName      string                 `json:"stepName"`
	Items         []domain.LineItem      `json:"items"`
	ItemCount     int                    `json:"itemCount"`
	Promotion     *domain.Promotion      `json:"promotion,omitempty"`
	Customer      domain.CustomerDetails `json:"customer"`
	PaymentMethod string                 `json:"paymentMethod,omitempty"`
	Pricing       domain.PricingSnapshot `json:"pricing"`
	Order         *domain.Order          `json:"order,omitempty"`
}

func (s *Session) view(pricing domain.PricingSnapshot) View {
	items := s.Cart.Clone().Items
	if items == nil {
		items = []domain.LineItem{}
	}
	customer := s.Customer
	if s.Step == domain.StepCustomerDetails {
		customer = s.staged
	}
	v := View{
		Step:          s.Step,
		StepName:      s.Step.String(),
		Items:         items,
		ItemCount:     s.Cart.ItemCount(),
		Customer:      customer,
		PaymentMethod: s.PaymentMethod,
		Pricing:       pricing,
		Order:         s.Order,
	}
	if s.Promotion != nil {
		p := *s.Promotion
		v.Promotion = &p
	}
	return v
}
