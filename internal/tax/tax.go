package tax

import (
	"context"
)

// Calculator defines the interface for tax calculation.
// Implementations: PercentageCalculator, NoTaxCalculator, MockCalculator
type Calculator interface {
	// CalculateTax computes tax on the discounted line items.
	// Returns tax amount in whole rupees.
	CalculateTax(ctx context.Context, params TaxParams) (*TaxResult, error)
}

// TaxParams contains all information needed for tax calculation.
type TaxParams struct {
	LineItems []LineItem

	// Discount is subtracted from the line item total before tax applies.
	Discount int64
}

// LineItem represents a single consultation being taxed.
type LineItem struct {
	ID          string
	Description string
	Quantity    int
	UnitPrice   int64
	TotalPrice  int64
}

// Taxable returns the sum of line totals less the discount.
func (p TaxParams) Taxable() int64 {
	var total int64
	for _, li := range p.LineItems {
		total += li.TotalPrice
	}
	return total - p.Discount
}

// TaxResult contains the calculated tax amount and breakdown.
type TaxResult struct {
	TotalTax     int64
	Breakdown    []TaxBreakdown
	ProviderTxID string // For audit trail
	IsEstimate   bool
}

// TaxBreakdown represents tax for a single jurisdiction.
type TaxBreakdown struct {
	Jurisdiction string  // "national", "state"
	Name         string  // e.g., "GST"
	Rate         float64 // e.g., 0.18 for 18%
	Amount       int64
}
