// Package kvstore persists string values under string keys.
//
// Carts, the order log, the applied promotion and checkout analytics are all
// kept as JSON documents behind this interface. Each key is independent:
// a Set is visible to the next Get of the same key, and there is no
// atomicity across keys.
package kvstore

import (
	"context"
	"fmt"
	"io"

	"github.com/dukerupert/gyan/internal"
)

// Store defines the key-value operations the checkout engine needs.
// Implementations can use memory, the local filesystem, Postgres, Redis or R2.
type Store interface {
	// Get returns the value stored at key.
	// Returns ErrNotFound when nothing is stored there.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key.
	// Returns nil if the key doesn't exist (idempotent).
	Remove(ctx context.Context, key string) error
}

// New creates a Store implementation based on configuration.
// Backends holding connections also implement io.Closer; see Close.
func New(ctx context.Context, cfg internal.StoreConfig) (Store, error) {
	var (
		store Store
		err   error
	)

	switch cfg.Provider {
	case "memory", "":
		store = NewMemoryStore()
	case "local":
		store, err = NewLocalStore(cfg.LocalPath)
	case "postgres":
		store, err = NewPostgresStore(ctx, cfg.DatabaseURL)
	case "redis":
		store, err = NewRedisStore(ctx, RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	case "r2":
		store, err = NewR2Store(ctx, R2Config{
			AccountID:   cfg.R2AccountID,
			AccessKeyID: cfg.R2AccessKeyID,
			SecretKey:   cfg.R2SecretKey,
			BucketName:  cfg.R2BucketName,
		})
	default:
		return nil, ErrUnknownProvider(cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Provider, err)
	}

	if cfg.KeyPrefix != "" && cfg.Provider != "memory" && cfg.Provider != "" {
		return &closingNamespace{Namespaced: Namespace(store, cfg.KeyPrefix), inner: store}, nil
	}
	return store, nil
}

// Close releases the resources held by store, if any.
func Close(store Store) error {
	if c, ok := store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

type closingNamespace struct {
	*Namespaced
	inner Store
}

func (c *closingNamespace) Close() error {
	return Close(c.inner)
}
