// Package redis resolves batches from values stored in Redis under
// "<namespace>:<id>", one MGET per batch.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/batchcache"
	"github.com/unkn0wn-root/batchcache/codec"
	"github.com/unkn0wn-root/batchcache/internal/util"
	"github.com/unkn0wn-root/batchcache/resolver"
)

var ErrNilClient = errors.New("redis resolver: nil client")

// MGetter is the subset of goredis.UniversalClient used here.
type MGetter interface {
	MGet(ctx context.Context, keys ...string) *goredis.SliceCmd
}

type Options[V any] struct {
	Client    MGetter // required; any goredis client works
	Namespace string  // key prefix; "" => ids are used as bare keys
	Codec     codec.Codec[V]
	Logger    batchcache.Logger
}

type Resolver[V any] struct {
	rdb   MGetter
	ns    string
	codec codec.Codec[V]
	log   batchcache.Logger
}

func New[V any](opts Options[V]) (*Resolver[V], error) {
	if opts.Client == nil {
		return nil, ErrNilClient
	}
	if opts.Codec == nil {
		return nil, errors.New("redis resolver: codec is required")
	}
	r := &Resolver[V]{rdb: opts.Client, ns: opts.Namespace, codec: opts.Codec, log: opts.Logger}
	if r.log == nil {
		r.log = batchcache.NopLogger{}
	}
	return r, nil
}

// Load fetches ids with one MGET. Missing keys are omitted; so are values
// that fail to decode (logged), which leaves them unresolved rather than
// failing the batch.
func (r *Resolver[V]) Load(ctx context.Context, ids []int64) (map[int64]V, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}
	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) != len(ids) {
		return nil, fmt.Errorf("redis resolver: MGET returned %d values for %d keys", len(vals), len(ids))
	}

	out := make(map[int64]V, len(ids))
	for i, raw := range vals {
		var b []byte
		switch vv := raw.(type) {
		case nil:
			continue
		case string:
			b = []byte(vv)
		case []byte:
			b = vv
		default:
			b = []byte(fmt.Sprint(vv))
		}
		v, err := r.codec.Decode(b)
		if err != nil {
			r.log.Warn("redis value decode failed", batchcache.Fields{"key": keys[i], "err": err})
			continue
		}
		out[ids[i]] = v
	}
	return out, nil
}

// Resolver returns Load as a batchcache.ResolveFunc.
func (r *Resolver[V]) Resolver() batchcache.ResolveFunc[V] {
	return resolver.Sync(r.Load)
}

func (r *Resolver[V]) key(id int64) string {
	if r.ns == "" {
		return strconv.FormatInt(id, 10)
	}
	return util.EntryKey(r.ns, id)
}
