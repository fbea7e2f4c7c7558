package kvstore

import "context"

// Namespaced prefixes every key with "<prefix>:" before delegating.
// The checkout engine scopes each visitor's cart, orders and analytics this way.
type Namespaced struct {
	store  Store
	prefix string
}

// Namespace wraps store so that all keys live under prefix.
func Namespace(store Store, prefix string) *Namespaced {
	return &Namespaced{store: store, prefix: prefix}
}

func (n *Namespaced) key(k string) string {
	return n.prefix + ":" + k
}

func (n *Namespaced) Get(ctx context.Context, key string) (string, error) {
	return n.store.Get(ctx, n.key(key))
}

func (n *Namespaced) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	return n.store.Set(ctx, n.key(key), value)
}

func (n *Namespaced) Remove(ctx context.Context, key string) error {
	return n.store.Remove(ctx, n.key(key))
}
