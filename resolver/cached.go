package resolver

import (
	"context"
	"errors"
	"time"

	"github.com/unkn0wn-root/batchcache"
	"github.com/unkn0wn-root/batchcache/codec"
	"github.com/unkn0wn-root/batchcache/genstore"
	"github.com/unkn0wn-root/batchcache/internal/util"
	"github.com/unkn0wn-root/batchcache/internal/wire"
	"github.com/unkn0wn-root/batchcache/provider"
)

const defaultTTL = 10 * time.Minute

type SetCostFunc func(key string, raw []byte, isBatch bool, n int) int64

// CachedOptions configure a read-through layer over a provider.Provider.
// Namespace, Provider, Codec and Upstream are required.
type CachedOptions[V any] struct {
	Namespace string // e.g. "app:prod:article"
	Provider  provider.Provider
	Codec     codec.Codec[V]
	Upstream  BatchFunc[V]

	TTL            time.Duration     // single entries; 0 => 10m
	BatchTTL       time.Duration     // batch-shaped entries; 0 => TTL
	DisableBatch   bool              // skip batch-shaped entries; singles only
	ComputeSetCost SetCostFunc       // default 1
	GenStore       genstore.GenStore // nil => in-process genstore.Local
	Logger         batchcache.Logger
}

// Cached serves what it can from the provider and forwards only the misses
// upstream, then writes results back. Two shapes are stored:
//
//	item:<ns>:<id>      - one value, framed with its id
//	batch:<ns>:<hash>   - a whole batch (hash over the sorted ids)
//
// A batch entry answers a repeated window in one provider round trip. Every
// stored value carries the generation of its id, snapshotted before upstream
// was asked; Invalidate bumps it, which stales the single entry and every
// batch entry holding the id. Entries that fail framing, carry a foreign id or
// an old generation, or fail to decode are deleted and treated as misses.
type Cached[V any] struct {
	ns       string
	provider provider.Provider
	codec    codec.Codec[V]
	upstream BatchFunc[V]
	gens     genstore.GenStore

	ttl          time.Duration
	batchTTL     time.Duration
	disableBatch bool
	cost         SetCostFunc
	log          batchcache.Logger
}

func NewCached[V any](opts CachedOptions[V]) (*Cached[V], error) {
	switch {
	case opts.Namespace == "":
		return nil, errors.New("resolver: namespace is required")
	case opts.Provider == nil:
		return nil, errors.New("resolver: provider is required")
	case opts.Codec == nil:
		return nil, errors.New("resolver: codec is required")
	case opts.Upstream == nil:
		return nil, errors.New("resolver: upstream is required")
	}

	c := &Cached[V]{
		ns:           opts.Namespace,
		provider:     opts.Provider,
		codec:        opts.Codec,
		upstream:     opts.Upstream,
		gens:         opts.GenStore,
		disableBatch: opts.DisableBatch,
		cost:         opts.ComputeSetCost,
		log:          opts.Logger,
	}
	c.ttl = opts.TTL
	if c.ttl <= 0 {
		c.ttl = defaultTTL
	}
	c.batchTTL = opts.BatchTTL
	if c.batchTTL <= 0 {
		c.batchTTL = c.ttl
	}
	if c.cost == nil {
		c.cost = func(string, []byte, bool, int) int64 { return 1 }
	}
	if c.log == nil {
		c.log = batchcache.NopLogger{}
	}
	if c.gens == nil {
		c.gens = genstore.NewLocal(0, 0)
	}
	return c, nil
}

// Load returns cached values for ids and fetches the rest upstream.
// If upstream fails after some ids were served from the provider, those are
// returned without error so the batcher can resolve them; the rest stay
// unresolved.
func (c *Cached[V]) Load(ctx context.Context, ids []int64) (map[int64]V, error) {
	out := make(map[int64]V, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	gens, err := c.gens.SnapshotMany(ctx, ids)
	if err != nil {
		// Without generations nothing read or written can be trusted.
		c.log.Warn("gen snapshot failed; bypassing cache", batchcache.Fields{
			"ns": c.ns, "ids": len(ids), "err": err,
		})
		return c.upstream(ctx, ids)
	}

	if !c.disableBatch {
		c.readBatch(ctx, ids, gens, out)
	}

	missing := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := out[id]; ok {
			continue
		}
		if v, ok := c.readEntry(ctx, id, gens[id]); ok {
			out[id] = v
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := c.upstream(ctx, missing)
	if err != nil {
		if len(out) == 0 {
			return nil, err
		}
		c.log.Warn("upstream failed; serving cached subset", batchcache.Fields{
			"ns": c.ns, "cached": len(out), "missing": len(missing), "err": err,
		})
		return out, nil
	}

	for id, v := range fetched {
		out[id] = v
		if _, asked := gens[id]; !asked {
			continue // extra keys are handed on but not cached
		}
		c.writeEntry(ctx, id, gens[id], v)
	}
	if !c.disableBatch {
		c.writeBatch(ctx, ids, gens, out)
	}
	return out, nil
}

// Resolver returns Load as a batchcache.ResolveFunc.
func (c *Cached[V]) Resolver() batchcache.ResolveFunc[V] {
	return Sync(c.Load)
}

// Invalidate bumps the generation of id and drops its single entry. Batch
// entries holding id become stale through the bump; the delete only frees
// space, so its failure is logged rather than returned.
func (c *Cached[V]) Invalidate(ctx context.Context, id int64) error {
	if _, err := c.gens.Bump(ctx, id); err != nil {
		if delErr := c.provider.Del(ctx, c.entryKey(id)); delErr != nil {
			return errors.Join(err, delErr)
		}
		return err
	}
	if err := c.provider.Del(ctx, c.entryKey(id)); err != nil {
		c.log.Debug("provider del failed after bump", batchcache.Fields{"id": id, "err": err})
	}
	return nil
}

func (c *Cached[V]) readBatch(ctx context.Context, ids []int64, gens map[int64]uint64, out map[int64]V) {
	key := c.batchKey(ids)
	raw, ok, err := c.provider.Get(ctx, key)
	if err != nil || !ok {
		return
	}
	items, err := wire.DecodeBatch(raw)
	if err != nil {
		_ = c.provider.Del(ctx, key) // self-heal corrupt
		c.log.Debug("dropped corrupt batch entry", batchcache.Fields{"key": key})
		return
	}

	decoded := make(map[int64]V, len(items))
	for _, it := range items {
		if cur, ok := gens[it.ID]; !ok || cur != it.Gen {
			_ = c.provider.Del(ctx, key)
			c.log.Debug("dropped stale batch entry", batchcache.Fields{"key": key, "id": it.ID})
			return
		}
		v, err := c.codec.Decode(it.Payload)
		if err != nil {
			_ = c.provider.Del(ctx, key)
			c.log.Debug("dropped undecodable batch entry", batchcache.Fields{"key": key, "id": it.ID})
			return
		}
		decoded[it.ID] = v
	}
	for _, id := range ids {
		if v, ok := decoded[id]; ok {
			out[id] = v
		}
	}
}

func (c *Cached[V]) readEntry(ctx context.Context, id int64, gen uint64) (V, bool) {
	var zero V
	key := c.entryKey(id)
	raw, ok, err := c.provider.Get(ctx, key)
	if err != nil {
		c.log.Debug("provider get failed", batchcache.Fields{"key": key, "err": err})
		return zero, false
	}
	if !ok {
		return zero, false
	}
	owner, stored, payload, err := wire.DecodeEntry(raw)
	if err != nil || owner != id || stored != gen {
		_ = c.provider.Del(ctx, key)
		return zero, false
	}
	v, err := c.codec.Decode(payload)
	if err != nil {
		_ = c.provider.Del(ctx, key)
		return zero, false
	}
	return v, true
}

func (c *Cached[V]) writeEntry(ctx context.Context, id int64, gen uint64, v V) {
	payload, err := c.codec.Encode(v)
	if err != nil {
		c.log.Warn("encode failed; entry not cached", batchcache.Fields{"id": id, "err": err})
		return
	}
	key := c.entryKey(id)
	raw := wire.EncodeEntry(id, gen, payload)
	ok, err := c.provider.Set(ctx, key, raw, c.cost(key, raw, false, 1), c.ttl)
	if err != nil {
		c.log.Debug("provider set failed", batchcache.Fields{"key": key, "err": err})
		return
	}
	if !ok {
		c.log.Debug("provider rejected set (pressure)", batchcache.Fields{"key": key})
	}
}

// writeBatch stores the resolved members of ids under the batch key. Ids
// absent from out are left out of the entry and keep going to upstream.
func (c *Cached[V]) writeBatch(ctx context.Context, ids []int64, gens map[int64]uint64, out map[int64]V) {
	items := make([]wire.Item, 0, len(ids))
	for _, id := range ids {
		v, ok := out[id]
		if !ok {
			continue
		}
		payload, err := c.codec.Encode(v)
		if err != nil {
			return
		}
		items = append(items, wire.Item{ID: id, Gen: gens[id], Payload: payload})
	}
	if len(items) == 0 {
		return
	}
	key := c.batchKey(ids)
	raw := wire.EncodeBatch(items)
	if ok, err := c.provider.Set(ctx, key, raw, c.cost(key, raw, true, len(items)), c.batchTTL); err != nil || !ok {
		c.log.Debug("batch entry not stored", batchcache.Fields{"key": key, "ok": ok, "err": err})
	}
}

func (c *Cached[V]) entryKey(id int64) string {
	return util.EntryKey("item:"+c.ns, id)
}

func (c *Cached[V]) batchKey(ids []int64) string {
	return util.BatchKey("batch:"+c.ns, ids)
}
