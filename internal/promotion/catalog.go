// Package promotion holds the fixed table of promotion codes and the rules
// for looking them up and checking eligibility.
package promotion

import (
	"sort"

	"github.com/dukerupert/gyan/internal/domain"
)

// Catalog is a read-only set of promotions keyed by canonical code.
type Catalog struct {
	byCode map[string]domain.Promotion
}

// Defaults is the storefront's promotion table. Descriptions are shown to
// customers as written, in Hindi.
var Defaults = []domain.Promotion{
	{Code: "FIRST20", PercentOff: 20, MinimumSubtotal: 1000, Description: "पहली खरीदारी पर 20% छूट"},
	{Code: "ASTRO15", PercentOff: 15, MinimumSubtotal: 500, Description: "सभी सेवाओं पर 15% छूट"},
	{Code: "WELCOME10", PercentOff: 10, MinimumSubtotal: 0, Description: "स्वागत छूट 10%"},
	{Code: "DIWALI25", PercentOff: 25, MinimumSubtotal: 2000, Description: "दिवाली विशेष 25% छूट"},
}

// NewCatalog builds a catalog from promos. Codes are canonicalized.
func NewCatalog(promos []domain.Promotion) *Catalog {
	c := &Catalog{byCode: make(map[string]domain.Promotion, len(promos))}
	for _, p := range promos {
		p.Code = domain.CanonicalCode(p.Code)
		c.byCode[p.Code] = p
	}
	return c
}

// NewDefaultCatalog returns the catalog built from Defaults.
func NewDefaultCatalog() *Catalog {
	return NewCatalog(Defaults)
}

// Lookup finds code after trimming whitespace, ignoring case.
func (c *Catalog) Lookup(code string) (domain.Promotion, bool) {
	p, ok := c.byCode[domain.CanonicalCode(code)]
	return p, ok
}

// Validate reports whether subtotal meets the promotion's minimum.
func (c *Catalog) Validate(p domain.Promotion, subtotal int64) bool {
	return subtotal >= p.MinimumSubtotal
}

// Apply looks up code and checks it against subtotal.
func (c *Catalog) Apply(code string, subtotal int64) (domain.Promotion, error) {
	canonical := domain.CanonicalCode(code)
	if canonical == "" {
		return domain.Promotion{}, &Error{Kind: KindNotFound}
	}

	p, ok := c.byCode[canonical]
	if !ok {
		return domain.Promotion{}, &Error{Kind: KindNotFound, Code: canonical}
	}
	if !c.Validate(p, subtotal) {
		return domain.Promotion{}, &Error{Kind: KindBelowMinimum, Code: canonical, Minimum: p.MinimumSubtotal}
	}
	return p, nil
}

// All lists the promotions ordered by minimum subtotal, then code.
func (c *Catalog) All() []domain.Promotion {
	out := make([]domain.Promotion, 0, len(c.byCode))
	for _, p := range c.byCode {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MinimumSubtotal != out[j].MinimumSubtotal {
			return out[i].MinimumSubtotal < out[j].MinimumSubtotal
		}
		return out[i].Code < out[j].Code
	})
	return out
}
