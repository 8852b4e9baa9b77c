package cache

import (
	"context"
)

// Store is the persistent key/value storage behind session collections.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get retrieves a value by key. Returns ErrCacheMiss if not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value, replacing any previous one.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes a value by key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// CacheError is a sentinel error type for cache and store lookups.
type CacheError string

func (e CacheError) Error() string { return string(e) }

const (
	// ErrCacheMiss indicates the key was not found.
	ErrCacheMiss CacheError = "cache miss"
)
