// Package sloghooks reports batcher events through log/slog.
package sloghooks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/unkn0wn-root/batchcache"
)

type Options struct {
	// Sampling for the chatty per-id events; 0/1 = log all.
	HitEvery   uint64
	DedupEvery uint64
	// Optional id redactor. Defaults to a SHA-256 prefix of the decimal id.
	Redact func(int64) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	hitCtr   atomic.Uint64
	dedupCtr atomic.Uint64
}

var _ batchcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(id int64) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(id)
	}
	sum := sha256.Sum256([]byte(strconv.FormatInt(id, 10)))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) BatchIssued(size int, epoch uint64) {
	if h.l == nil {
		return
	}
	h.l.Debug("batchcache.batch_issued", "size", size, "epoch", epoch)
}

func (h *Hooks) CacheHit(id int64) {
	if h.l == nil || !sample(h.opts.HitEvery, &h.hitCtr) {
		return
	}
	h.l.Debug("batchcache.cache_hit", "id", h.redact(id))
}

func (h *Hooks) Deduped(id int64) {
	if h.l == nil || !sample(h.opts.DedupEvery, &h.dedupCtr) {
		return
	}
	h.l.Debug("batchcache.deduped", "id", h.redact(id))
}

func (h *Hooks) PartialResolution(requested, resolved int) {
	if h.l == nil {
		return
	}
	h.l.Info("batchcache.partial_resolution",
		"requested", requested,
		"resolved", resolved)
}

func (h *Hooks) ResolverFailed(size int, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("batchcache.resolver_failed",
		"size", size,
		"err", err)
}

func (h *Hooks) StaleCompletion(batchEpoch, currentEpoch uint64) {
	if h.l == nil {
		return
	}
	h.l.Info("batchcache.stale_completion",
		"batch_epoch", batchEpoch,
		"epoch", currentEpoch)
}

func (h *Hooks) UniverseReset(size, orphaned int) {
	if h.l == nil {
		return
	}
	lvl := slog.LevelInfo
	if orphaned > 0 {
		lvl = slog.LevelWarn
	}
	h.l.Log(context.Background(), lvl, "batchcache.universe_reset",
		"size", size,
		"orphaned", orphaned)
}
