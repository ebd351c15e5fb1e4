// Package provider defines the byte store behind resolver.Cached.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly
// the []byte previously passed to Set for a key (no added metadata, no
// re-encoding). Stores that compress internally must fully reverse it.
//
// The keyspaces "item:<ns>:" and "batch:<ns>:" are owned by resolver.Cached.
// Foreign writes under these prefixes are treated as corruption and deleted.
//
// The batcher's own cache never evicts; providers sit behind the resolver, so
// eviction here only costs an extra upstream round trip.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs. Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL (<= 0 means no expiry where supported).
	// May ignore cost if unsupported.
	// Returns ok=false when the store rejected the write under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort).
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}
