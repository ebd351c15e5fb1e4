package batchcache

import (
	"context"
	"time"
)

// Completion delivers the outcome of one resolver call. It must be called at
// most once per batch. A nil error with a partial map is a partial resolution;
// a non-nil error means nothing in the batch resolved.
type Completion[V any] func(results map[int64]V, err error)

// ResolveFunc resolves a batch of identifiers asynchronously and reports the
// outcome through complete. It may call complete synchronously or from another
// goroutine. batch holds 1..Window distinct ids and must not be retained
// after complete is called. A panic raised while ResolveFunc runs on the
// caller's goroutine fails the batch with ErrResolverPanic; panics on other
// goroutines are the resolver's to recover.
type ResolveFunc[V any] func(ctx context.Context, batch []int64, complete Completion[V])

// Batcher coalesces, dedupes and caches asynchronous per-identifier fetches.
// V is the resolver-defined value type.
type Batcher[V any] interface {
	// SetUniverse replaces the ordered identifier set used for batch locality
	// and discards every cached and pending entry.
	SetUniverse(ids []int64)

	// Fetch calls fn with the value for id. Cached values are delivered
	// synchronously; otherwise fn is queued until a batch covering id resolves.
	// fn never fires if the resolver fails for id.
	Fetch(id int64, fn func(V))

	// FetchE is Fetch with an error channel: fn fires exactly once, either with
	// the value or with the error that prevented it.
	FetchE(id int64, fn func(V, error))

	// Get blocks until the value for id is available, an error is delivered or
	// ctx is done. On ctx expiry the queued continuation is detached.
	Get(ctx context.Context, id int64) (V, error)

	// State reports the tri-state of id without side effects.
	State(id int64) State
	// Lookup returns the resolved value for id, if any.
	Lookup(id int64) (V, bool)

	Stats() Stats
	Close(ctx context.Context) error
}

// State is the lifecycle of a single identifier within one universe.
type State uint8

const (
	// Absent: never requested in the current universe.
	Absent State = iota
	// Pending: included in an in-flight batch, not yet resolved.
	Pending
	// Resolved: value available.
	Resolved
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// OrphanPolicy decides what happens to queued continuations when the universe
// is replaced while batches are still in flight.
type OrphanPolicy uint8

const (
	// OrphanKeep leaves continuations registered. In-flight batches from the
	// old universe still resolve them when they complete.
	OrphanKeep OrphanPolicy = iota
	// OrphanFail detaches every queued continuation on SetUniverse. Error-aware
	// continuations receive ErrUniverseReset; plain ones are dropped.
	OrphanFail
)

// Stats is a point-in-time snapshot of batcher counters.
type Stats struct {
	Resolved int    // entries holding a value
	Pending  int    // entries covered by an in-flight or failed batch
	Waiting  int    // queued continuations
	Batches  uint64 // resolver invocations
	Hits     uint64 // synchronous cache hits
	Dedups   uint64 // fetches queued behind an in-flight batch
	Failures uint64 // failed batches (error or timeout)
	Epoch    uint64 // universe generation; bumped by SetUniverse
}

// Options tune the Batcher. Only Resolver is required.
type Options[V any] struct {
	// Required
	Resolver ResolveFunc[V]

	Window       int             // ids per batch window, including the requested one; 0 => 10
	BatchTimeout time.Duration   // 0 => batches may stay in flight forever
	FailMissing  bool            // deliver ErrNotResolved to FetchE callers for ids omitted from results
	OrphanPolicy OrphanPolicy    // default OrphanKeep
	Context      context.Context // base context for resolver calls; nil => Background
	Logger       Logger          // if nil, NopLogger is used
	Hooks        Hooks           // if nil, NopHooks is used
}

func New[V any](opts Options[V]) (Batcher[V], error) {
	b, err := newBatcher[V](opts)
	if err != nil {
		return nil, err
	}
	return b, nil
}
