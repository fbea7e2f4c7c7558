// Package cart persists the visitor's cart and enforces its invariants:
// item ids are unique, every quantity is between 1 and domain.MaxQuantity
// and no unit price exceeds domain.MaxUnitPrice.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dukerupert/gyan/internal/domain"
	"github.com/dukerupert/gyan/internal/kvstore"
)

// Key is the store key holding the serialized cart.
const Key = "cart"

// Store owns the cart key. Every mutation is written before it returns,
// so a Load that follows observes it.
type Store struct {
	mu sync.Mutex
	kv kvstore.Store
}

func NewStore(kv kvstore.Store) *Store {
	return &Store{kv: kv}
}

// Load reads the persisted cart.
//
// A missing key yields an empty cart. An unreadable value yields an empty
// cart together with an error matching domain.ErrStorageCorrupt; callers
// keep the empty cart and carry on.
func (s *Store) Load(ctx context.Context) (domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *Store) load(ctx context.Context) (domain.Cart, error) {
	const op = "cart.load"

	raw, err := s.kv.Get(ctx, Key)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return domain.Cart{}, nil
		}
		return domain.Cart{}, domain.Internal(err, op, "failed to read cart")
	}

	var items []domain.LineItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w: %v", op, domain.ErrStorageCorrupt, err)
	}
	if err := checkItems(items); err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w: %v", op, domain.ErrStorageCorrupt, err)
	}

	return domain.Cart{Items: items}, nil
}

func checkItems(items []domain.LineItem) error {
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.ID == "" {
			return errors.New("item without id")
		}
		if item.Quantity < 1 || item.Quantity > domain.MaxQuantity {
			return fmt.Errorf("item %s has quantity %d", item.ID, item.Quantity)
		}
		if item.UnitPrice < 0 || item.UnitPrice > domain.MaxUnitPrice {
			return fmt.Errorf("item %s has price %d", item.ID, item.UnitPrice)
		}
		if _, dup := seen[item.ID]; dup {
			return fmt.Errorf("duplicate item %s", item.ID)
		}
		seen[item.ID] = struct{}{}
	}
	return nil
}

func (s *Store) save(ctx context.Context, c domain.Cart) error {
	items := c.Items
	if items == nil {
		items = []domain.LineItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return domain.Internal(err, "cart.save", "failed to encode cart")
	}
	if err := s.kv.Set(ctx, Key, string(b)); err != nil {
		return domain.Internal(err, "cart.save", "failed to save cart")
	}
	return nil
}

// mutate loads the cart, applies fn and persists the result.
// A corrupt cart is replaced by the mutation applied to an empty cart.
func (s *Store) mutate(ctx context.Context, fn func(*domain.Cart) error) (domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.load(ctx)
	if err != nil && !errors.Is(err, domain.ErrStorageCorrupt) {
		return domain.Cart{}, err
	}

	if err := fn(&c); err != nil {
		return domain.Cart{}, err
	}

	if err := s.save(ctx, c); err != nil {
		return domain.Cart{}, err
	}
	return c.Clone(), nil
}

// AddItem increments the quantity of id by one, or appends it with quantity 1.
// Name, price and image of an existing item are left as first added.
func (s *Store) AddItem(ctx context.Context, id, name string, unitPrice int64, imageRef string) (domain.Cart, error) {
	const op = "cart.add"
	if id == "" {
		return domain.Cart{}, domain.Invalid(op, "item id is required")
	}
	if unitPrice < 0 || unitPrice > domain.MaxUnitPrice {
		return domain.Cart{}, domain.Errorf(domain.EINVALID, op, "invalid price: %d", unitPrice)
	}

	return s.mutate(ctx, func(c *domain.Cart) error {
		if i := c.Find(id); i >= 0 {
			if c.Items[i].Quantity >= domain.MaxQuantity {
				return errQuantity(op)
			}
			c.Items[i].Quantity++
			return nil
		}
		c.Items = append(c.Items, domain.LineItem{
			ID:        id,
			Name:      name,
			UnitPrice: unitPrice,
			Quantity:  1,
			ImageRef:  imageRef,
		})
		return nil
	})
}

func errQuantity(op string) error {
	return domain.Errorf(domain.EINVALID, op, "You can book at most %d of a service.", domain.MaxQuantity)
}

// RemoveItem deletes id from the cart. Removing an absent id is not an error.
func (s *Store) RemoveItem(ctx context.Context, id string) (domain.Cart, error) {
	return s.mutate(ctx, func(c *domain.Cart) error {
		removeItem(c, id)
		return nil
	})
}

// SetQuantity sets the quantity of id. A quantity of zero or less removes
// the item. An absent id leaves the cart unchanged.
func (s *Store) SetQuantity(ctx context.Context, id string, qty int) (domain.Cart, error) {
	if qty > domain.MaxQuantity {
		return domain.Cart{}, errQuantity("cart.set_quantity")
	}
	return s.mutate(ctx, func(c *domain.Cart) error {
		if qty <= 0 {
			removeItem(c, id)
			return nil
		}
		if i := c.Find(id); i >= 0 {
			c.Items[i].Quantity = qty
		}
		return nil
	})
}

// Clear removes the cart key entirely.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Remove(ctx, Key); err != nil {
		return domain.Internal(err, "cart.clear", "failed to clear cart")
	}
	return nil
}

func removeItem(c *domain.Cart, id string) {
	i := c.Find(id)
	if i < 0 {
		return
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
}
