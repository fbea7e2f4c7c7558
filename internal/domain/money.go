package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatRupees renders a whole-rupee amount with Indian digit grouping,
// e.g. 123456 -> "₹1,23,456".
func FormatRupees(amount int64) string {
	d := decimal.NewFromInt(amount)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	return sign + "₹" + groupIndian(d.StringFixed(0))
}

// FormatRate renders a fractional rate as a percentage, e.g. 0.18 -> "18%".
func FormatRate(rate float64) string {
	return decimal.NewFromFloat(rate).Mul(decimal.NewFromInt(100)).Round(2).String() + "%"
}

// groupIndian applies lakh/crore grouping: the last three digits, then pairs.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var parts []string
	for len(head) > 2 {
		parts = append([]string{head[len(head)-2:]}, parts...)
		head = head[:len(head)-2]
	}
	if head != "" {
		parts = append([]string{head}, parts...)
	}
	return strings.Join(parts, ",") + "," + tail
}
