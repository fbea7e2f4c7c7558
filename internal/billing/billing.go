// Package billing charges customers through a payment gateway.
//
// The checkout engine depends only on Gateway. SimulatedGateway stands in
// for a real processor in development; StripeGateway charges real cards.
package billing

import (
	"context"
)

// Gateway charges a customer once for a checkout.
//
// A declined payment is not an error: Charge returns a PaymentResult with
// Success false and a Reason. Errors are reserved for requests the gateway
// could not process at all (bad configuration, network failure, cancellation).
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*PaymentResult, error)
}

// ChargeRequest describes a single payment.
type ChargeRequest struct {
	// Amount is in whole rupees.
	Amount   int64
	Currency string

	// Method is one of the storefront payment methods (upi, card, ...).
	Method string

	CustomerName  string
	CustomerEmail string
	Description   string

	// PaymentMethodToken is a gateway-specific token (e.g. a Stripe
	// PaymentMethod ID). Simulated payments ignore it.
	PaymentMethodToken string

	// IdempotencyKey prevents duplicate charges when a request is retried.
	IdempotencyKey string

	Metadata map[string]string
}

// PaymentResult is the gateway's verdict on a charge.
type PaymentResult struct {
	Success   bool
	PaymentID string
	Reason    string
}
