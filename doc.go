// Package batchcache implements a request-batching cache over an ordered set of
// integer identifiers. Callers fetch single ids asynchronously; the batcher
// coalesces nearby absent ids into one upstream call, dedupes concurrent
// requests for the same id, and caches results so each id is resolved at most
// once per universe.
//
// Components:
//   - Batcher: tri-state cache (absent, pending, resolved) plus queued continuations.
//   - ResolveFunc: caller-supplied async upstream; see package resolver for adapters
//     (Sync, Shared, Cached) and resolver/redis, resolver/httpapi for concrete sources.
//   - Logger / Hooks: pluggable logging (log/zap, log/logrus, log/slog, log/zerolog)
//     and event hooks (sloghooks, hooks/async).
//
// Batch window:
//
//	universe: [1 2 3 4 5 6 7 8 9 10 11 12 13 14 15 ...]
//	Fetch(5)  -> resolve([5 6 7 8 9 10 11 12 13 14])
//
// The window starts at the requested id's position, spans Window positions
// (default 10), never wraps and never looks backward. Ids already pending or
// resolved are skipped. Ids outside the universe resolve as singleton batches.
//
// Failures:
//
// Fetch mirrors the classic continuation contract: if the resolver fails or
// omits an id, the id stays pending and the continuation never fires. FetchE
// and Get add an error channel, and Options.BatchTimeout bounds how long a
// batch may stay in flight.
package batchcache
