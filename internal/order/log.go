// Package order finalizes paid checkouts into immutable orders and keeps
// the order log.
package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dukerupert/gyan/internal/domain"
	"github.com/dukerupert/gyan/internal/kvstore"
)

// Key is the store key holding the order log.
const Key = "orders"

// Log is the append-only list of orders under the orders key.
type Log struct {
	mu sync.Mutex
	kv kvstore.Store
}

func NewLog(kv kvstore.Store) *Log {
	return &Log{kv: kv}
}

// Append adds o to the end of the log.
// An unreadable log is reported, never overwritten.
func (l *Log) Append(ctx context.Context, o domain.Order) error {
	const op = "order.append"

	l.mu.Lock()
	defer l.mu.Unlock()

	orders, err := l.load(ctx, op)
	if err != nil {
		return err
	}
	orders = append(orders, o)

	b, err := json.Marshal(orders)
	if err != nil {
		return domain.Internal(err, op, "failed to encode order log")
	}
	if err := l.kv.Set(ctx, Key, string(b)); err != nil {
		return domain.Internal(err, op, "failed to save order log")
	}
	return nil
}

// List returns every order, oldest first.
func (l *Log) List(ctx context.Context) ([]domain.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(ctx, "order.list")
}

// Get returns the order with the given id.
func (l *Log) Get(ctx context.Context, id string) (*domain.Order, error) {
	const op = "order.get"

	orders, err := l.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		if orders[i].OrderID == id {
			return &orders[i], nil
		}
	}
	return nil, domain.NotFound(op, "order", id)
}

func (l *Log) load(ctx context.Context, op string) ([]domain.Order, error) {
	raw, err := l.kv.Get(ctx, Key)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, nil
		}
		return nil, domain.Internal(err, op, "failed to read order log")
	}

	var orders []domain.Order
	if err := json.Unmarshal([]byte(raw), &orders); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, domain.ErrStorageCorrupt, err)
	}
	return orders, nil
}
