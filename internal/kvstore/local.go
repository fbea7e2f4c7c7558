package kvstore

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// LocalStore implements Store using the local filesystem, one file per key.
// This is the simplest durable backend for single-instance deployments.
type LocalStore struct {
	basePath string // Root directory for values (e.g., "./data/store")
}

// NewLocalStore creates a new local filesystem store.
// basePath is created if it doesn't exist.
func NewLocalStore(basePath string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	return &LocalStore{basePath: basePath}, nil
}

// path escapes key so that separators in visitor ids can't leave basePath.
func (s *LocalStore) path(key string) string {
	return filepath.Join(s.basePath, url.PathEscape(key)+".json")
}

// Get reads the file for key.
func (s *LocalStore) Get(ctx context.Context, key string) (string, error) {
	b, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrKeyNotFound(key)
		}
		return "", backendError("failed to read value", err)
	}
	return string(b), nil
}

// Set writes value to a temp file and renames it over the key's file,
// so a concurrent Get never sees a partial write.
func (s *LocalStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}

	tmp, err := os.CreateTemp(s.basePath, ".tmp-*")
	if err != nil {
		return backendError("failed to create file", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		return backendError("failed to write file", err)
	}
	if err := tmp.Close(); err != nil {
		return backendError("failed to write file", err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return backendError("failed to replace file", err)
	}
	return nil
}

// Remove deletes the file for key.
func (s *LocalStore) Remove(ctx context.Context, key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return backendError("failed to delete value", err)
	}
	return nil
}
