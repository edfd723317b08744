package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or its TTL has elapsed.
var ErrMiss = errors.New("cache: miss")

// Cache is a keyed, TTL-aware store of fetched results with explicit
// invalidation. Implementations must be safe for concurrent use.
//
// Clear drops every entry; it is reserved for the forced-logout and bulk
// revocation paths. Everything else invalidates only the keys it owns.
type Cache interface {
	// Get returns the value stored under key, or ErrMiss if the key is
	// absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key for ttl. A ttl <= 0 means the entry never
	// expires on its own and lives until invalidated or cleared.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Invalidate removes a single key. Removing an absent key is not an error.
	Invalidate(ctx context.Context, key string) error

	// Clear removes every entry.
	Clear(ctx context.Context) error

	// Close releases any resources held by the cache.
	Close() error
}
