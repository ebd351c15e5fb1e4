package batchcache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The batcher calls them outside its lock, but on the caller's goroutine.
type Hooks interface {
	// A resolver call was issued for size ids in the given universe epoch.
	BatchIssued(size int, epoch uint64)

	// Fetch was served synchronously from the cache.
	CacheHit(id int64)

	// Fetch was queued behind a batch already in flight for id.
	Deduped(id int64)

	// Resolver succeeded but returned fewer ids than requested.
	PartialResolution(requested, resolved int)

	// Resolver reported an error, or the batch timed out.
	ResolverFailed(size int, err error)

	// A batch issued under an older universe completed after SetUniverse.
	StaleCompletion(batchEpoch, currentEpoch uint64)

	// SetUniverse replaced the universe; orphaned is the number of ids that
	// still had continuations queued.
	UniverseReset(size, orphaned int)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) BatchIssued(int, uint64)        {}
func (NopHooks) CacheHit(int64)                 {}
func (NopHooks) Deduped(int64)                  {}
func (NopHooks) PartialResolution(int, int)     {}
func (NopHooks) ResolverFailed(int, error)      {}
func (NopHooks) StaleCompletion(uint64, uint64) {}
func (NopHooks) UniverseReset(int, int)         {}
