package cover

import "sync"

// LockTable hands out one mutex per document ID. The table's own mutex only
// guards map mutation; generation work runs under the per-document lock, so
// unrelated documents never contend.
type LockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLockTable creates an empty table.
func NewLockTable() *LockTable {
	return &LockTable{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the generation lock for id and returns its unlock function.
// Entries are created lazily and live for the process lifetime.
func (t *LockTable) Lock(id string) (unlock func()) {
	t.mu.Lock()
	m, ok := t.locks[id]
	if !ok {
		m = &sync.Mutex{}
		t.locks[id] = m
	}
	t.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Len returns the number of documents that have ever been locked.
func (t *LockTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}

// FailureSet remembers documents whose cover generation failed since process
// start. It is never persisted: after a restart each document gets one more
// attempt.
type FailureSet struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewFailureSet creates an empty set.
func NewFailureSet() *FailureSet {
	return &FailureSet{ids: make(map[string]struct{})}
}

// Add records a failed generation for id.
func (s *FailureSet) Add(id string) {
	s.mu.Lock()
	s.ids[id] = struct{}{}
	s.mu.Unlock()
}

// Contains reports whether generation already failed for id.
func (s *FailureSet) Contains(id string) bool {
	s.mu.RLock()
	_, ok := s.ids[id]
	s.mu.RUnlock()
	return ok
}

// Len returns the number of documents in the set.
func (s *FailureSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}
