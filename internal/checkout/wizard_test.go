package checkout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/gyan/internal/domain"
	"github.com/dukerupert/gyan/internal/promotion"
)

func cartOf(items ...domain.LineItem) domain.Cart {
	return domain.Cart{Items: items}
}

var kundli = domain.LineItem{ID: "kundli", Name: "Kundli Reading", UnitPrice: 1200, Quantity: 1}

func newTestWizard() *Wizard {
	return NewWizard(nil, nil, fixedValidator())
}

func TestWizard_ReviewCart(t *testing.T) {
	ctx := context.Background()
	w := newTestWizard()

	err := w.Advance(ctx)
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.True(t, ve.Has("cart"))
	assert.Equal(t, domain.StepReviewCart, w.Step())

	w.SetCart(cartOf(kundli))
	require.NoError(t, w.Advance(ctx))
	assert.Equal(t, domain.StepCustomerDetails, w.Step())
}

func TestWizard_CustomerDetails_MissingPhone(t *testing.T) {
	ctx := context.Background()
	w := newTestWizard()
	w.SetCart(cartOf(kundli))
	require.NoError(t, w.Advance(ctx))

	c := validCustomer()
	c.Phone = ""
	w.SetCustomer(c)

	err := w.Advance(ctx)
	require.Error(t, err)
	assert.True(t, domain.IsValidationError(err))

	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.True(t, ve.Has("phone"))
	assert.Equal(t, domain.StepCustomerDetails, w.Step())
	assert.Equal(t, domain.CustomerDetails{}, w.Session().Customer, "invalid details are never committed")
}

func TestWizard_CustomerDetails_Commit(t *testing.T) {
	ctx := context.Background()
	w := newTestWizard()
	w.SetCart(cartOf(kundli))
	require.NoError(t, w.Advance(ctx))

	w.SetCustomer(validCustomer())
	require.NoError(t, w.Advance(ctx))
	assert.Equal(t, domain.StepPaymentMethod, w.Step())
	assert.Equal(t, "Asha", w.Session().Customer.FirstName)
}

func TestWizard_PaymentStepCannotAdvance(t *testing.T) {
	ctx := context.Background()
	w := newTestWizard()
	w.SetCart(cartOf(kundli))
	require.NoError(t, w.Advance(ctx))
	w.SetCustomer(validCustomer())
	require.NoError(t, w.Advance(ctx))

	require.NoError(t, w.SelectPaymentMethod(domain.PaymentUPI))
	assert.ErrorIs(t, w.Advance(ctx), ErrConfirmationPayment)
	assert.Equal(t, domain.StepPaymentMethod, w.Step())
}

func TestWizard_ValidateStep_PaymentMethod(t *testing.T) {
	w := newTestWizard()
	err := w.ValidateStep(domain.StepPaymentMethod)
	assert.True(t, domain.GetValidationFields(err) != nil)

	assert.Error(t, w.SelectPaymentMethod("cash"))
	require.NoError(t, w.SelectPaymentMethod(domain.PaymentWallet))
	assert.NoError(t, w.ValidateStep(domain.StepPaymentMethod))

	assert.ErrorIs(t, w.ValidateStep(domain.Step(9)), ErrInvalidStep)
}

func TestWizard_Retreat(t *testing.T) {
	ctx := context.Background()
	w := newTestWizard()
	w.SetCart(cartOf(kundli))
	require.NoError(t, w.Advance(ctx))
	w.SetCustomer(validCustomer())
	require.NoError(t, w.Advance(ctx))

	assert.ErrorIs(t, w.Retreat(domain.StepPaymentMethod), ErrInvalidStep)
	assert.ErrorIs(t, w.Retreat(domain.Step(0)), ErrInvalidStep)

	require.NoError(t, w.Retreat(domain.StepReviewCart))
	assert.Equal(t, domain.StepReviewCart, w.Step())
	assert.Equal(t, "Asha", w.Session().Customer.FirstName, "details are retained")

	w.complete(&domain.Order{OrderID: "AG-1"})
	assert.ErrorIs(t, w.Retreat(domain.StepReviewCart), ErrCheckoutComplete)
	assert.ErrorIs(t, w.Advance(ctx), ErrCheckoutComplete)
}

func TestWizard_ApplyPromotion(t *testing.T) {
	ctx := context.Background()

	t.Run("FIRST20 on 1200", func(t *testing.T) {
		w := newTestWizard()
		w.SetCart(cartOf(kundli))

		p, err := w.ApplyPromotion(" first20 ")
		require.NoError(t, err)
		assert.Equal(t, "FIRST20", p.Code)

		snap, err := w.Pricing(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.PricingSnapshot{Subtotal: 1200, Discount: 240, Tax: 173, Total: 1133}, snap)
	})

	t.Run("FIRST20 on 500 is below minimum", func(t *testing.T) {
		w := newTestWizard()
		w.SetCart(cartOf(domain.LineItem{ID: "tarot", UnitPrice: 500, Quantity: 1}))

		_, err := w.ApplyPromotion("FIRST20")
		assert.ErrorIs(t, err, promotion.ErrBelowMinimum)
		assert.Nil(t, w.Session().Promotion)

		snap, err := w.Pricing(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), snap.Discount)
	})

	t.Run("second code is refused", func(t *testing.T) {
		w := newTestWizard()
		w.SetCart(cartOf(kundli))

		_, err := w.ApplyPromotion("WELCOME10")
		require.NoError(t, err)
		_, err = w.ApplyPromotion("ASTRO15")
		assert.ErrorIs(t, err, promotion.ErrAlreadyApplied)
		assert.Equal(t, "WELCOME10", w.Session().Promotion.Code)
	})

	t.Run("unknown and empty codes", func(t *testing.T) {
		w := newTestWizard()
		w.SetCart(cartOf(kundli))

		_, err := w.ApplyPromotion("NOPE")
		assert.ErrorIs(t, err, promotion.ErrNotFound)
		_, err = w.ApplyPromotion("   ")
		assert.ErrorIs(t, err, promotion.ErrNotFound)
		assert.Nil(t, w.Session().Promotion)
	})

	t.Run("discount follows cart below minimum", func(t *testing.T) {
		w := newTestWizard()
		w.SetCart(cartOf(kundli))
		_, err := w.ApplyPromotion("FIRST20")
		require.NoError(t, err)

		w.SetCart(cartOf(domain.LineItem{ID: "tarot", UnitPrice: 500, Quantity: 1}))
		snap, err := w.Pricing(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), snap.Discount)
		assert.Equal(t, int64(590), snap.Total)
	})
}

func TestWizard_RestorePromotion(t *testing.T) {
	w := newTestWizard()
	assert.False(t, w.RestorePromotion("BOGUS"))
	assert.True(t, w.RestorePromotion("astro15"))
	assert.Equal(t, 15, w.Session().Promotion.PercentOff)
	assert.Equal(t, "ASTRO15", w.Session().Promotion.Code)
}
