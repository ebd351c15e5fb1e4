// Package asynchook moves Hooks calls off the batcher's caller goroutines.
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{HitEvery: 100})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	b, _ := batchcache.New(batchcache.Options[Excerpt]{
//	    Resolver: res.Resolver(),
//	    Hooks:    hooks, // or `raw` if you don't want async
//	})
//
// Events are dropped when the queue is full.
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/batchcache"
)

type Hooks struct {
	inner   batchcache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ batchcache.Hooks = (*Hooks)(nil)

func New(inner batchcache.Hooks, workers, qlen int) *Hooks {
	if inner == nil {
		inner = batchcache.NopHooks{}
	}
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events after Close are
// dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped reports how many events were discarded.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) BatchIssued(n int, e uint64) { h.try(func() { h.inner.BatchIssued(n, e) }) }
func (h *Hooks) CacheHit(id int64)           { h.try(func() { h.inner.CacheHit(id) }) }
func (h *Hooks) Deduped(id int64)            { h.try(func() { h.inner.Deduped(id) }) }
func (h *Hooks) ResolverFailed(n int, err error) {
	h.try(func() { h.inner.ResolverFailed(n, err) })
}
func (h *Hooks) PartialResolution(req, got int) {
	h.try(func() { h.inner.PartialResolution(req, got) })
}
func (h *Hooks) StaleCompletion(batch, cur uint64) {
	h.try(func() { h.inner.StaleCompletion(batch, cur) })
}
func (h *Hooks) UniverseReset(size, orphaned int) {
	h.try(func() { h.inner.UniverseReset(size, orphaned) })
}
