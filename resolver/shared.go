package resolver

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/batchcache"
	"github.com/unkn0wn-root/batchcache/internal/util"
)

// Shared dedupes identical concurrent batches across batchers that share one
// upstream (e.g. one batcher per list view over the same backend). Batches
// are identical when they hold the same set of ids, in any order.
//
// The returned map is shared by every caller of the same flight and must be
// treated as read-only.
type Shared[V any] struct {
	fn    BatchFunc[V]
	group singleflight.Group
}

func NewShared[V any](fn BatchFunc[V]) *Shared[V] {
	return &Shared[V]{fn: fn}
}

// Load runs fn once per distinct in-flight id set. Each caller waits on its
// own ctx; cancelling one caller does not cancel the shared upstream call.
func (s *Shared[V]) Load(ctx context.Context, ids []int64) (map[int64]V, error) {
	key := util.BatchKey("shared", ids)
	upstream := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		return call(upstream, s.fn, ids)
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		m, _ := r.Val.(map[int64]V)
		return m, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Resolver returns Load as a batchcache.ResolveFunc.
func (s *Shared[V]) Resolver() batchcache.ResolveFunc[V] {
	return Sync(s.Load)
}
