// Package resolver adapts blocking batch loaders into batchcache.ResolveFunc
// and layers them: Shared coalesces identical batches issued by different
// batchers, Cached serves batches from a provider.Provider before going
// upstream.
package resolver

import (
	"context"
	"fmt"

	"github.com/unkn0wn-root/batchcache"
)

// BatchFunc loads values for ids. Ids it cannot resolve are omitted from the
// map; a non-nil error means the whole batch failed.
type BatchFunc[V any] func(ctx context.Context, ids []int64) (map[int64]V, error)

// Sync runs fn on its own goroutine per batch and reports through complete.
// A panic in fn is converted into an error for the batch.
func Sync[V any](fn BatchFunc[V]) batchcache.ResolveFunc[V] {
	return func(ctx context.Context, batch []int64, complete batchcache.Completion[V]) {
		go func() {
			res, err := call(ctx, fn, batch)
			complete(res, err)
		}()
	}
}

func call[V any](ctx context.Context, fn BatchFunc[V], ids []int64) (res map[int64]V, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("resolver: panic: %v", r)
		}
	}()
	return fn(ctx, ids)
}
