package domain

import "sort"

// Bounds on a line item. Carts within them cannot overflow any total.
const (
	MaxQuantity  = 99
	MaxUnitPrice = 10_000_000
)

// LineItem is one service offering plus quantity within a cart.
// JSON keys match the layout the storefront has always persisted.
type LineItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	ImageRef  string `json:"image"`
}

// LineTotal returns UnitPrice * Quantity.
func (li LineItem) LineTotal() int64 {
	return li.UnitPrice * int64(li.Quantity)
}

// Cart is an ordered sequence of line items keyed by ID.
// No two items share an ID and every quantity is at least 1.
type Cart struct {
	Items []LineItem
}

// IsEmpty reports whether the cart holds no items.
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Subtotal sums the line totals.
func (c Cart) Subtotal() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.LineTotal()
	}
	return total
}

// ItemCount sums the quantities (the cart badge number).
func (c Cart) ItemCount() int {
	var count int
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// Find returns the index of the item with id, or -1.
func (c Cart) Find(id string) int {
	for i, item := range c.Items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy whose Items slice does not alias c.
func (c Cart) Clone() Cart {
	if c.Items == nil {
		return Cart{}
	}
	items := make([]LineItem, len(c.Items))
	copy(items, c.Items)
	return Cart{Items: items}
}

// Equal compares carts by content. Item order is ignored.
func (c Cart) Equal(other Cart) bool {
	if len(c.Items) != len(other.Items) {
		return false
	}
	a := sortedItems(c.Items)
	b := sortedItems(other.Items)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sortedItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	copy(out, items)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
