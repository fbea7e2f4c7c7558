package tax

import (
	"context"
	"math"
)

// DefaultGSTRate is the goods and services tax applied to consultations.
const DefaultGSTRate = 0.18

// PercentageCalculator calculates tax using a single national rate.
type PercentageCalculator struct {
	rate float64 // e.g., 0.18 for 18%
	name string
}

// NewPercentageCalculator creates a new percentage-based tax calculator.
// An empty name defaults to "GST".
func NewPercentageCalculator(rate float64, name string) Calculator {
	if name == "" {
		name = "GST"
	}
	return &PercentageCalculator{rate: rate, name: name}
}

// NewGSTCalculator returns the 18% GST calculator.
func NewGSTCalculator() Calculator {
	return NewPercentageCalculator(DefaultGSTRate, "GST")
}

// CalculateTax computes round(taxable * rate), rounding half away from zero.
func (c *PercentageCalculator) CalculateTax(ctx context.Context, params TaxParams) (*TaxResult, error) {
	if c.rate < 0 || c.rate > 1 || math.IsNaN(c.rate) {
		return nil, ErrInvalidTaxRate
	}

	taxable := params.Taxable()
	if taxable < 0 {
		return nil, ErrNegativeTaxable
	}

	amount := int64(math.Round(float64(taxable) * c.rate))

	return &TaxResult{
		TotalTax: amount,
		Breakdown: []TaxBreakdown{
			{
				Jurisdiction: "national",
				Name:         c.name,
				Rate:         c.rate,
				Amount:       amount,
			},
		},
	}, nil
}

// Rate returns the configured rate.
func (c *PercentageCalculator) Rate() float64 {
	return c.rate
}
