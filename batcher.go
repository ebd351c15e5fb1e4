package batchcache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type entry[V any] struct {
	state  State
	val    V
	flight *flight // batch that marked the entry pending
	err    error   // set when that batch failed; entry stays pending
}

// flight is one resolver call. done and expired are guarded by batcher.mu.
type flight struct {
	ids     []int64
	epoch   uint64
	timer   *time.Timer
	cancel  context.CancelFunc
	done    bool // resolver completed (first call wins)
	expired bool // BatchTimeout fired before completion
}

type handler[V any] struct {
	token   uint64
	flight  *flight
	plain   func(V)
	withErr func(V, error)
}

func (h handler[V]) value(v V) {
	if h.plain != nil {
		h.plain(v)
		return
	}
	h.withErr(v, nil)
}

// fail reports err to error-aware handlers. Plain handlers have no error
// channel and are left untouched.
func (h handler[V]) fail(err error) bool {
	if h.withErr == nil {
		return false
	}
	var zero V
	h.withErr(zero, err)
	return true
}

type delivery[V any] struct {
	handlers []handler[V]
	val      V
	err      error
}

type batcher[V any] struct {
	resolve     ResolveFunc[V]
	window      int
	timeout     time.Duration
	failMissing bool
	orphans     OrphanPolicy
	log         Logger
	hooks       Hooks

	ctx    context.Context
	cancel context.CancelFunc

	// All further fields are protected by mu
	mu        sync.Mutex
	universe  []int64
	index     map[int64]int // first position of each id in universe
	entries   map[int64]entry[V]
	handlers  map[int64][]handler[V]
	inflight  map[*flight]struct{}
	epoch     uint64
	nextToken uint64
	closed    bool

	batches  uint64
	hits     uint64
	dedups   uint64
	failures uint64
}

func newBatcher[V any](opts Options[V]) (*batcher[V], error) {
	if opts.Resolver == nil {
		return nil, ErrNilResolver
	}

	b := &batcher[V]{
		resolve:     opts.Resolver,
		timeout:     opts.BatchTimeout,
		failMissing: opts.FailMissing,
		orphans:     opts.OrphanPolicy,
		index:       make(map[int64]int),
		entries:     make(map[int64]entry[V]),
		handlers:    make(map[int64][]handler[V]),
		inflight:    make(map[*flight]struct{}),
	}

	b.window = opts.Window
	if b.window <= 0 {
		b.window = defaultWindow
	}
	b.log = coalesce[Logger](opts.Logger, NopLogger{})
	b.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})

	base := opts.Context
	if base == nil {
		base = context.Background()
	}
	b.ctx, b.cancel = context.WithCancel(base)
	return b, nil
}

func (b *batcher[V]) SetUniverse(ids []int64) {
	universe := make([]int64, len(ids))
	copy(universe, ids)
	index := make(map[int64]int, len(ids))
	for i, id := range universe {
		if _, dup := index[id]; !dup {
			index[id] = i
		}
	}

	b.mu.Lock()
	b.epoch++
	epoch := b.epoch
	b.universe = universe
	b.index = index
	b.entries = make(map[int64]entry[V])

	orphaned := len(b.handlers)
	var dropped []handler[V]
	if b.orphans == OrphanFail && orphaned > 0 {
		for _, hs := range b.handlers {
			dropped = append(dropped, hs...)
		}
		b.handlers = make(map[int64][]handler[V])
	}
	b.mu.Unlock()

	b.hooks.UniverseReset(len(universe), orphaned)
	b.log.Info("universe replaced", Fields{"size": len(universe), "epoch": epoch, "orphaned": orphaned})

	for _, h := range dropped {
		h.fail(ErrUniverseReset)
	}
}

func (b *batcher[V]) Fetch(id int64, fn func(V)) {
	if fn == nil {
		fn = func(V) {}
	}
	b.fetch(id, handler[V]{plain: fn})
}

func (b *batcher[V]) FetchE(id int64, fn func(V, error)) {
	if fn == nil {
		fn = func(V, error) {}
	}
	b.fetch(id, handler[V]{withErr: fn})
}

func (b *batcher[V]) Get(ctx context.Context, id int64) (V, error) {
	type result struct {
		v   V
		err error
	}
	ch := make(chan result, 1)
	token := b.fetch(id, handler[V]{withErr: func(v V, err error) {
		ch <- result{v, err}
	}})

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		if !b.detach(id, token) {
			// already extracted for delivery; it is about to land
			r := <-ch
			return r.v, r.err
		}
		var zero V
		return zero, ctx.Err()
	}
}

// fetch registers h for id and starts a batch when id is absent.
// It returns the handler token (zero when h fired synchronously).
func (b *batcher[V]) fetch(id int64, h handler[V]) uint64 {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		b.log.Warn("fetch on closed batcher", Fields{"id": id})
		h.fail(ErrClosed)
		return 0
	}

	e := b.entries[id]
	switch e.state {
	case Resolved:
		b.hits++
		b.mu.Unlock()
		b.hooks.CacheHit(id)
		h.value(e.val)
		return 0

	case Pending:
		if e.err != nil && h.withErr != nil {
			// batch already failed; don't make error-aware callers hang
			b.mu.Unlock()
			h.fail(e.err)
			return 0
		}
		token := b.enqueueLocked(id, e.flight, h)
		b.dedups++
		b.mu.Unlock()
		b.hooks.Deduped(id)
		return token
	}

	f := b.startFlightLocked(id)
	token := b.enqueueLocked(id, f, h)
	batch := make([]int64, len(f.ids))
	copy(batch, f.ids)
	ctx := b.ctx
	if b.timeout > 0 {
		ctx, f.cancel = context.WithTimeout(ctx, b.timeout)
		f.timer = time.AfterFunc(b.timeout, func() { b.expire(f) })
	}
	b.mu.Unlock()

	b.hooks.BatchIssued(len(batch), f.epoch)
	b.log.Debug("batch issued", Fields{"id": id, "size": len(batch), "epoch": f.epoch})

	b.invoke(ctx, f, batch)
	return token
}

// invoke runs the resolver without holding mu. A synchronous panic fails
// the batch like a resolver error.
func (b *batcher[V]) invoke(ctx context.Context, f *flight, batch []int64) {
	defer func() {
		if r := recover(); r != nil {
			b.complete(f, nil, fmt.Errorf("%w: %v", ErrResolverPanic, r))
		}
	}()
	b.resolve(ctx, batch, func(results map[int64]V, err error) {
		b.complete(f, results, err)
	})
}

func (b *batcher[V]) enqueueLocked(id int64, f *flight, h handler[V]) uint64 {
	b.nextToken++
	h.token = b.nextToken
	h.flight = f
	b.handlers[id] = append(b.handlers[id], h)
	return h.token
}

// startFlightLocked marks id pending and pulls in the following ids of the
// universe window that are still absent. Pending ids are skipped without
// ending the scan; resolved ids are never re-requested.
func (b *batcher[V]) startFlightLocked(id int64) *flight {
	f := &flight{epoch: b.epoch, ids: []int64{id}}
	b.entries[id] = entry[V]{state: Pending, flight: f}

	if pos, ok := b.index[id]; ok {
		end := len(b.universe)
		if b.window < end-pos {
			end = pos + b.window
		}
		for _, other := range b.universe[pos:end] {
			if b.entries[other].state != Absent {
				continue
			}
			f.ids = append(f.ids, other)
			b.entries[other] = entry[V]{state: Pending, flight: f}
		}
	}

	b.inflight[f] = struct{}{}
	b.batches++
	return f
}

func (b *batcher[V]) complete(f *flight, results map[int64]V, err error) {
	b.mu.Lock()
	if f.done || b.closed {
		dup := f.done
		b.mu.Unlock()
		if dup {
			b.log.Warn("duplicate completion ignored", Fields{"size": len(f.ids), "epoch": f.epoch})
		}
		return
	}
	f.done = true
	delete(b.inflight, f)
	if f.timer != nil {
		f.timer.Stop()
	}

	var (
		out      []delivery[V]
		missing  int
		failed   bool
		stale    = f.epoch != b.epoch
		current  = b.epoch
		discard  = stale && b.orphans == OrphanFail
		lateFail = err != nil && f.expired
	)
	switch {
	case lateFail:
		// timeout already failed this batch
	case err != nil:
		failed = true
		b.failures++
		out = b.failLocked(f, err)
	case discard:
	default:
		out, missing = b.applyLocked(f, results)
	}
	b.mu.Unlock()

	if f.cancel != nil {
		f.cancel()
	}
	if stale {
		b.hooks.StaleCompletion(f.epoch, current)
		b.log.Debug("stale completion", Fields{"epoch": f.epoch, "current": current, "discarded": discard})
	}
	if failed {
		b.hooks.ResolverFailed(len(f.ids), err)
		b.log.Warn("resolver failed", Fields{"size": len(f.ids), "epoch": f.epoch, "err": err})
	}
	if missing > 0 {
		b.hooks.PartialResolution(len(f.ids), len(f.ids)-missing)
		b.log.Debug("partial resolution", Fields{"requested": len(f.ids), "missing": missing})
	}
	deliver(out)
}

func (b *batcher[V]) expire(f *flight) {
	b.mu.Lock()
	if f.done || f.expired || b.closed {
		b.mu.Unlock()
		return
	}
	f.expired = true
	b.failures++
	out := b.failLocked(f, ErrBatchTimeout)
	b.mu.Unlock()

	if f.cancel != nil {
		f.cancel()
	}
	b.hooks.ResolverFailed(len(f.ids), ErrBatchTimeout)
	b.log.Warn("batch timed out", Fields{"size": len(f.ids), "epoch": f.epoch, "timeout": b.timeout})
	deliver(out)
}

// applyLocked stores every result and extracts the continuations to fire.
// Batch members come first in batch order, extra keys after.
func (b *batcher[V]) applyLocked(f *flight, results map[int64]V) ([]delivery[V], int) {
	var out []delivery[V]
	resolve := func(id int64, v V) {
		e := b.entries[id]
		if e.state == Resolved {
			v = e.val // first value wins
		} else {
			b.entries[id] = entry[V]{state: Resolved, val: v}
		}
		if hs := b.handlers[id]; len(hs) > 0 {
			delete(b.handlers, id)
			out = append(out, delivery[V]{handlers: hs, val: v})
		}
	}

	missing := 0
	inBatch := make(map[int64]struct{}, len(f.ids))
	for _, id := range f.ids {
		inBatch[id] = struct{}{}
		if v, ok := results[id]; ok {
			resolve(id, v)
			continue
		}
		missing++
		if !b.failMissing {
			continue // stays pending
		}
		if e := b.entries[id]; e.state == Pending && e.flight == f {
			e.err = ErrNotResolved
			b.entries[id] = e
		}
		if hs := b.takeFailableLocked(id, f); len(hs) > 0 {
			out = append(out, delivery[V]{handlers: hs, err: ErrNotResolved})
		}
	}
	for id, v := range results {
		if _, ok := inBatch[id]; !ok {
			resolve(id, v)
		}
	}
	return out, missing
}

func (b *batcher[V]) failLocked(f *flight, cause error) []delivery[V] {
	rerr := &ResolveError{Batch: append([]int64(nil), f.ids...), Epoch: f.epoch, Err: cause}
	var out []delivery[V]
	for _, id := range f.ids {
		if e, ok := b.entries[id]; ok && e.state == Pending && e.flight == f {
			e.err = rerr
			b.entries[id] = e
		}
		if hs := b.takeFailableLocked(id, f); len(hs) > 0 {
			out = append(out, delivery[V]{handlers: hs, err: rerr})
		}
	}
	return out
}

// takeFailableLocked removes the error-aware handlers of id that wait on f.
// Plain handlers stay queued.
func (b *batcher[V]) takeFailableLocked(id int64, f *flight) []handler[V] {
	hs := b.handlers[id]
	if len(hs) == 0 {
		return nil
	}
	var taken []handler[V]
	kept := hs[:0:0]
	for _, h := range hs {
		if h.withErr != nil && h.flight == f {
			taken = append(taken, h)
		} else {
			kept = append(kept, h)
		}
	}
	if len(kept) == 0 {
		delete(b.handlers, id)
	} else {
		b.handlers[id] = kept
	}
	return taken
}

func (b *batcher[V]) detach(id int64, token uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	hs := b.handlers[id]
	for i, h := range hs {
		if h.token != token {
			continue
		}
		hs = append(hs[:i:i], hs[i+1:]...)
		if len(hs) == 0 {
			delete(b.handlers, id)
		} else {
			b.handlers[id] = hs
		}
		return true
	}
	return false
}

func (b *batcher[V]) State(id int64) State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.entries[id].state
}

func (b *batcher[V]) Lookup(id int64) (V, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.entries[id]
	if e.state != Resolved {
		var zero V
		return zero, false
	}
	return e.val, true
}

func (b *batcher[V]) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := Stats{
		Batches:  b.batches,
		Hits:     b.hits,
		Dedups:   b.dedups,
		Failures: b.failures,
		Epoch:    b.epoch,
	}
	for _, e := range b.entries {
		switch e.state {
		case Resolved:
			s.Resolved++
		case Pending:
			s.Pending++
		}
	}
	for _, hs := range b.handlers {
		s.Waiting += len(hs)
	}
	return s
}

// Close cancels the resolver context, stops batch timers and releases every
// queued continuation. Error-aware continuations receive ErrClosed.
func (b *batcher[V]) Close(context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for f := range b.inflight {
		if f.timer != nil {
			f.timer.Stop()
		}
	}
	b.inflight = make(map[*flight]struct{})
	queued := b.handlers
	b.handlers = make(map[int64][]handler[V])
	b.mu.Unlock()

	b.cancel()

	dropped := 0
	for _, hs := range queued {
		for _, h := range hs {
			if !h.fail(ErrClosed) {
				dropped++
			}
		}
	}
	if dropped > 0 {
		b.log.Warn("closed with plain continuations queued", Fields{"dropped": dropped})
	}
	return nil
}

func deliver[V any](out []delivery[V]) {
	for _, d := range out {
		for _, h := range d.handlers {
			if d.err != nil {
				h.fail(d.err)
			} else {
				h.value(d.val)
			}
		}
	}
}
