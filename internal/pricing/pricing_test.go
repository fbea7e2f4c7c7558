package pricing

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/gyan/internal/domain"
	"github.com/dukerupert/gyan/internal/promotion"
	"github.com/dukerupert/gyan/internal/tax"
)

func cartOf(subtotal int64) domain.Cart {
	return domain.Cart{Items: []domain.LineItem{{ID: "svc", UnitPrice: subtotal, Quantity: 1}}}
}

func promo(t *testing.T, code string) *domain.Promotion {
	t.Helper()
	p, ok := promotion.NewDefaultCatalog().Lookup(code)
	require.True(t, ok)
	return &p
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name     string
		subtotal int64
		code     string
		want     domain.PricingSnapshot
	}{
		{"empty cart", 0, "", domain.PricingSnapshot{}},
		{"no promotion", 1000, "", domain.PricingSnapshot{Subtotal: 1000, Tax: 180, Total: 1180}},
		{"FIRST20 eligible", 1200, "FIRST20", domain.PricingSnapshot{Subtotal: 1200, Discount: 240, Tax: 173, Total: 1133}},
		{"FIRST20 below minimum", 500, "FIRST20", domain.PricingSnapshot{Subtotal: 500, Tax: 90, Total: 590}},
		{"ASTRO15 rounds discount", 999, "ASTRO15", domain.PricingSnapshot{Subtotal: 999, Discount: 150, Tax: 153, Total: 1002}},
		{"DIWALI25", 2500, "DIWALI25", domain.PricingSnapshot{Subtotal: 2500, Discount: 625, Tax: 338, Total: 2213}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p *domain.Promotion
			if tt.code != "" {
				p = promo(t, tt.code)
			}
			assert.Equal(t, tt.want, Compute(cartOf(tt.subtotal), p))
		})
	}
}

func TestCompute_NoPromotionProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		subtotal := rng.Int63n(1_000_000)
		got := Compute(cartOf(subtotal), nil)
		want := subtotal + int64(math.Round(float64(subtotal)*0.18))
		require.Equal(t, want, got.Total, "subtotal %d", subtotal)
		require.Equal(t, got.Subtotal-got.Discount+got.Tax, got.Total)
	}
}

func TestCalculator_MatchesCompute(t *testing.T) {
	calc := NewCalculator(nil)
	cart := domain.Cart{Items: []domain.LineItem{
		{ID: "kundli", UnitPrice: 999, Quantity: 2},
		{ID: "tarot", UnitPrice: 501, Quantity: 1},
	}}

	for _, code := range []string{"", "FIRST20", "ASTRO15", "WELCOME10", "DIWALI25"} {
		var p *domain.Promotion
		if code != "" {
			p = promo(t, code)
		}
		got, err := calc.Calculate(context.Background(), cart, p)
		require.NoError(t, err)
		assert.Equal(t, Compute(cart, p), got, "code %q", code)
	}
}

func TestCalculator_TaxFailure(t *testing.T) {
	m := tax.NewMockCalculator()
	m.CalculateTaxFunc = func(ctx context.Context, p tax.TaxParams) (*tax.TaxResult, error) {
		return nil, errors.New("tax service down")
	}

	_, err := NewCalculator(m).Calculate(context.Background(), cartOf(100), nil)
	assert.ErrorContains(t, err, "tax service down")
}

func TestCalculator_NoTax(t *testing.T) {
	got, err := NewCalculator(tax.NewNoTaxCalculator()).Calculate(context.Background(), cartOf(1200), promo(t, "FIRST20"))
	require.NoError(t, err)
	assert.Equal(t, domain.PricingSnapshot{Subtotal: 1200, Discount: 240, Tax: 0, Total: 960}, got)
}
