package engine

import "sync"

// marketLocks serializes operations per market id. Operations on different
// markets proceed independently; two operations on the same market never
// interleave.
type marketLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newMarketLocks() *marketLocks {
	return &marketLocks{locks: make(map[int64]*sync.Mutex)}
}

// lock acquires the mutex for the given market id, creating it on first use.
// The returned function releases it.
func (ml *marketLocks) lock(id int64) func() {
	ml.mu.Lock()
	m, ok := ml.locks[id]
	if !ok {
		m = &sync.Mutex{}
		ml.locks[id] = m
	}
	ml.mu.Unlock()

	m.Lock()
	return m.Unlock
}
