package checkout

import (
	"github.com/dukerupert/gyan/internal/domain"
	"github.com/dukerupert/gyan/internal/order"
)

var (
	ErrCartEmpty           = domain.Errorf(domain.EINVALID, "", "Your cart is empty. Please select a service first.")
	ErrPaymentInProgress   = domain.Errorf(domain.ECONFLICT, "", "A payment is already being processed.")
	ErrConfirmationPayment = domain.Errorf(domain.EINVALID, "", "Complete the payment to confirm your order.")
	ErrCheckoutComplete    = domain.Errorf(domain.EINVALID, "", "This checkout is already complete.")
	ErrInvalidStep         = domain.Errorf(domain.EINVALID, "", "Invalid checkout step.")
	ErrNotStarted          = domain.Errorf(domain.EINVALID, "", "Checkout has not been started.")

	// ErrPaymentFailed leaves the session at the payment step; the visitor
	// may retry manually.
	ErrPaymentFailed = order.ErrPaymentFailed
)
