package cache

import (
	"strings"
	"sync"
	"time"
)

// MemStore is an in-memory Store backed by a map. Suitable for tests and
// single-process deployments.
type MemStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	log     []InvalidationEvent
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[string]Entry)}
}

// Get returns the entry for a key.
func (s *MemStore) Get(key string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	cp := e
	return &cp, true
}

// Put stores an entry, overwriting any existing row.
func (s *MemStore) Put(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.Key] = e
	return nil
}

// Delete removes a key.
func (s *MemStore) Delete(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	delete(s.entries, key)
	return ok, nil
}

// DeleteByPrefix removes entries tagged with the prefix.
func (s *MemStore) DeleteByPrefix(prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for key, e := range s.entries {
		if e.Prefix == prefix || strings.HasPrefix(key, prefix+":") {
			delete(s.entries, key)
			n++
		}
	}
	return n, nil
}

// IncrementHit bumps a key's hit counter.
func (s *MemStore) IncrementHit(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok {
		e.HitCount++
		s.entries[key] = e
	}
	return nil
}

// Stats reports entry counts.
func (s *MemStore) Stats(now time.Time) (StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := StoreStats{TotalEntries: len(s.entries)}
	for _, e := range s.entries {
		st.TotalHits += e.HitCount
		if now.Before(e.ExpiresAt) {
			st.ValidEntries++
		}
	}
	st.ExpiredEntries = st.TotalEntries - st.ValidEntries
	return st, nil
}

// LogInvalidation appends an audit record.
func (s *MemStore) LogInvalidation(ev InvalidationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, ev)
	return nil
}

// InvalidationLog returns a copy of the audit records.
func (s *MemStore) InvalidationLog() []InvalidationEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]InvalidationEvent, len(s.log))
	copy(out, s.log)
	return out
}

// CleanupExpired removes expired entries.
func (s *MemStore) CleanupExpired(now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for key, e := range s.entries {
		if now.After(e.ExpiresAt) {
			delete(s.entries, key)
			n++
		}
	}
	return n, nil
}
