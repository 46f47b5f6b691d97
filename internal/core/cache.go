package core

import (
	"context"
	"time"
)

// CacheRepository is a small byte-value cache used to save provider quota.
// Implementations live in the data package.
type CacheRepository interface {
	// Set stores a value under key. A ttl of 0 means the key does not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the cached value, or nil when the key is missing or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes a key and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)
}
