package genstore

import (
	"context"
	"sync"
	"time"
)

type localEntry struct {
	gen       uint64
	updatedAt time.Time
}

// Local keeps generations in-process. Only bumped ids are stored, so the
// map stays as small as the set of invalidated ids.
type Local struct {
	mu     sync.RWMutex
	gens   map[int64]localEntry
	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewLocal returns a Local store. With a positive interval and retention a
// background loop prunes ids not bumped within retention; Close stops it.
func NewLocal(cleanupInterval, retention time.Duration) *Local {
	s := &Local{gens: make(map[int64]localEntry)}
	if cleanupInterval > 0 && retention > 0 {
		s.ticker = time.NewTicker(cleanupInterval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					s.Cleanup(retention)
				case <-s.stopCh:
					return
				}
			}
		}()
	}
	return s
}

func (s *Local) SnapshotMany(_ context.Context, ids []int64) (map[int64]uint64, error) {
	out := make(map[int64]uint64, len(ids))
	s.mu.RLock()
	for _, id := range ids {
		out[id] = s.gens[id].gen
	}
	s.mu.RUnlock()
	return out, nil
}

func (s *Local) Bump(_ context.Context, id int64) (uint64, error) {
	now := time.Now()
	s.mu.Lock()
	e := s.gens[id]
	e.gen++
	e.updatedAt = now
	s.gens[id] = e
	s.mu.Unlock()
	return e.gen, nil
}

// Cleanup forgets ids bumped before now-retention. A pruned id reads as 0
// again, so retention must exceed the cache TTL or an entry written before
// the bump could match.
func (s *Local) Cleanup(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-retention)

	s.mu.Lock()
	for id, e := range s.gens {
		if e.updatedAt.Before(cutoff) {
			delete(s.gens, id)
		}
	}
	s.mu.Unlock()
}

func (s *Local) Close(_ context.Context) error {
	if s.stopCh != nil {
		s.ticker.Stop()
		close(s.stopCh)
		s.wg.Wait()
		s.stopCh = nil
	}
	return nil
}
