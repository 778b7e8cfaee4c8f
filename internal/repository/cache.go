package repository

import (
	"context"
	"time"
)

// Cache defines the interface for ephemeral key-value storage with TTLs.
// The auth layer keeps opaque refresh tokens here; a Redis implementation
// serves multi-node deployments and an in-memory one single-node setups.
type Cache interface {
	// Get retrieves a value by key.
	// Returns ErrCacheMiss if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with an optional TTL.
	// If ttl is 0, the value doesn't expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value by key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists.
	Exists(ctx context.Context, key string) (bool, error)

	// Close releases resources held by the cache.
	Close() error
}
