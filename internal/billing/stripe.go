package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
)

// testPaymentMethod is Stripe's always-approved test card.
const testPaymentMethod = "pm_card_visa"

// intentCreator is satisfied by *paymentintent.Client.
type intentCreator interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripeGateway charges through a confirmed Stripe PaymentIntent.
type StripeGateway struct {
	config  StripeConfig
	intents intentCreator
}

// NewStripeGateway creates a gateway using its own backend, leaving the
// stripe package globals untouched.
func NewStripeGateway(cfg StripeConfig) (*StripeGateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Currency == "" {
		cfg.Currency = "inr"
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		MaxNetworkRetries: stripe.Int64(int64(cfg.MaxRetries)),
	})

	return &StripeGateway{
		config:  cfg,
		intents: &paymentintent.Client{B: backend, Key: cfg.APIKey},
	}, nil
}

// Charge creates and confirms a PaymentIntent for req.Amount rupees.
// Card declines come back as an unsuccessful PaymentResult.
func (g *StripeGateway) Charge(ctx context.Context, req ChargeRequest) (*PaymentResult, error) {
	if req.Amount < 0 {
		return nil, ErrInvalidAmount
	}
	if req.Amount < 1 {
		return nil, ErrAmountTooSmall
	}

	token := req.PaymentMethodToken
	if token == "" {
		if !g.config.IsTestMode() {
			return nil, ErrPaymentMethodRequired
		}
		token = testPaymentMethod
	}

	currency := req.Currency
	if currency == "" {
		currency = g.config.Currency
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.Amount * 100), // paise
		Currency:      stripe.String(currency),
		PaymentMethod: stripe.String(token),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	params.Context = ctx
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.CustomerEmail != "" {
		params.ReceiptEmail = stripe.String(req.CustomerEmail)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	params.AddMetadata("storefront_method", req.Method)
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := g.intents.New(params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && se.Type == stripe.ErrorTypeCard {
			return &PaymentResult{Success: false, Reason: se.Msg}, nil
		}
		return nil, wrapStripeError(err)
	}

	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return &PaymentResult{
			Success:   false,
			PaymentID: pi.ID,
			Reason:    fmt.Sprintf("payment not completed (status: %s)", pi.Status),
		}, nil
	}

	return &PaymentResult{Success: true, PaymentID: pi.ID}, nil
}

// wrapStripeError converts a Stripe SDK error into a StripeError.
func wrapStripeError(err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return fmt.Errorf("stripe: %w", err)
	}
	return &StripeError{
		Message:       se.Msg,
		Code:          string(se.Code),
		DeclineCode:   string(se.DeclineCode),
		StatusCode:    se.HTTPStatusCode,
		RequestID:     se.RequestID,
		OriginalError: err,
	}
}
