// Package genstore tracks a generation per id. Cached entries record the
// generation they were built under; a bump makes every entry that carries
// the old value stale, including batch-shaped entries that are not tracked
// by key.
package genstore

import (
	"context"
	"time"
)

// GenStore abstracts where generations live.
// Use Local for in-process gens, or Redis to share them across replicas.
type GenStore interface {
	// SnapshotMany returns gens for ids; missing => 0.
	SnapshotMany(ctx context.Context, ids []int64) (map[int64]uint64, error)
	// Bump atomically increments and returns the new generation.
	Bump(ctx context.Context, id int64) (uint64, error)
	// Cleanup prunes old metadata if applicable (no-op for Redis).
	Cleanup(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
