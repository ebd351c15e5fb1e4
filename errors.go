package batchcache

import (
	"errors"
	"fmt"
)

var (
	ErrNilResolver   = errors.New("batchcache: resolver is required")
	ErrClosed        = errors.New("batchcache: batcher closed")
	ErrBatchTimeout  = errors.New("batchcache: batch timed out")
	ErrNotResolved   = errors.New("batchcache: id missing from resolver results")
	ErrUniverseReset = errors.New("batchcache: universe replaced while pending")
	ErrResolverPanic = errors.New("batchcache: resolver panicked")
)

// ResolveError is delivered to error-aware continuations when the resolver
// fails a batch (or the batch times out).
type ResolveError struct {
	Batch []int64
	Epoch uint64
	Err   error
}

func (e *ResolveError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("resolve batch of %d (epoch %d): unknown error", len(e.Batch), e.Epoch)
	}
	return fmt.Sprintf("resolve batch of %d (epoch %d): %v", len(e.Batch), e.Epoch, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }
