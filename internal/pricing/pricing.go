// Package pricing derives the price breakdown of a cart.
package pricing

import (
	"context"
	"fmt"
	"math"

	"github.com/dukerupert/gyan/internal/domain"
	"github.com/dukerupert/gyan/internal/tax"
)

// TaxRate is the GST rate applied after discount.
const TaxRate = tax.DefaultGSTRate

// Discount returns round(subtotal * percent / 100), or 0 when promo is nil
// or the subtotal is below its minimum.
func Discount(subtotal int64, promo *domain.Promotion) int64 {
	if promo == nil || subtotal < promo.MinimumSubtotal {
		return 0
	}
	return int64(math.Round(float64(subtotal) * float64(promo.PercentOff) / 100))
}

// Compute is the pure price calculation used throughout checkout:
//
//	discount = round(subtotal * percent / 100)
//	tax      = round((subtotal - discount) * 0.18)
//	total    = subtotal - discount + tax
func Compute(cart domain.Cart, promo *domain.Promotion) domain.PricingSnapshot {
	subtotal := cart.Subtotal()
	discount := Discount(subtotal, promo)
	taxAmount := int64(math.Round(float64(subtotal-discount) * TaxRate))

	return domain.PricingSnapshot{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      taxAmount,
		Total:    subtotal - discount + taxAmount,
	}
}

// Calculator prices carts through a configurable tax.Calculator.
// With the GST calculator it yields exactly what Compute does.
type Calculator struct {
	tax tax.Calculator
}

func NewCalculator(tc tax.Calculator) *Calculator {
	if tc == nil {
		tc = tax.NewGSTCalculator()
	}
	return &Calculator{tax: tc}
}

// Calculate returns the snapshot for cart with promo applied.
func (c *Calculator) Calculate(ctx context.Context, cart domain.Cart, promo *domain.Promotion) (domain.PricingSnapshot, error) {
	subtotal := cart.Subtotal()
	discount := Discount(subtotal, promo)

	params := tax.TaxParams{
		LineItems: make([]tax.LineItem, 0, len(cart.Items)),
		Discount:  discount,
	}
	for _, item := range cart.Items {
		params.LineItems = append(params.LineItems, tax.LineItem{
			ID:          item.ID,
			Description: item.Name,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			TotalPrice:  item.LineTotal(),
		})
	}

	result, err := c.tax.CalculateTax(ctx, params)
	if err != nil {
		return domain.PricingSnapshot{}, fmt.Errorf("pricing.calculate: %w", err)
	}

	return domain.PricingSnapshot{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      result.TotalTax,
		Total:    subtotal - discount + result.TotalTax,
	}, nil
}
