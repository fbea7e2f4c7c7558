package domain

import "strings"

// Step is a position in the checkout wizard.
type Step int

const (
	StepReviewCart      Step = 1
	StepCustomerDetails Step = 2
	StepPaymentMethod   Step = 3
	StepConfirmation    Step = 4
)

func (s Step) String() string {
	switch s {
	case StepReviewCart:
		return "review_cart"
	case StepCustomerDetails:
		return "customer_details"
	case StepPaymentMethod:
		return "payment_method"
	case StepConfirmation:
		return "confirmation"
	default:
		return "unknown"
	}
}

// Valid reports whether s is one of the four wizard steps.
func (s Step) Valid() bool {
	return s >= StepReviewCart && s <= StepConfirmation
}

// Promotion is a named discount rule with an eligibility floor on subtotal.
type Promotion struct {
	Code            string `json:"code"`
	PercentOff      int    `json:"percentOff"`
	MinimumSubtotal int64  `json:"minimumSubtotal"`
	Description     string `json:"description"`
}

// CanonicalCode trims and upper-cases a promotion code.
func CanonicalCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// PricingSnapshot is the derived price breakdown of a cart.
// Total = Subtotal - Discount + Tax.
type PricingSnapshot struct {
	Subtotal int64 `json:"subtotal"`
	Discount int64 `json:"discount"`
	Tax      int64 `json:"tax"`
	Total    int64 `json:"total"`
}

// CustomerDetails are collected at the customer step of the wizard.
// Birth data is required for the consultation itself.
type CustomerDetails struct {
	FirstName     string `json:"firstName" validate:"required"`
	LastName      string `json:"lastName" validate:"required"`
	Email         string `json:"email" validate:"required,simple_email"`
	Phone         string `json:"phone" validate:"required,phone10"`
	BirthDate     string `json:"birthDate" validate:"required,birth_date"`
	BirthTime     string `json:"birthTime" validate:"required"`
	BirthPlace    string `json:"birthPlace" validate:"required"`
	Gender        string `json:"gender" validate:"required"`
	MaritalStatus string `json:"maritalStatus,omitempty"`
}

// FullName joins first and last name.
func (c CustomerDetails) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Payment methods offered at the payment step.
const (
	PaymentUPI        = "upi"
	PaymentCard       = "card"
	PaymentNetBanking = "netbanking"
	PaymentWallet     = "wallet"
)

// PaymentMethods lists the selectable payment methods in display order.
var PaymentMethods = []string{PaymentUPI, PaymentCard, PaymentNetBanking, PaymentWallet}

// IsPaymentMethod reports whether m is a selectable payment method.
func IsPaymentMethod(m string) bool {
	for _, pm := range PaymentMethods {
		if pm == m {
			return true
		}
	}
	return false
}
