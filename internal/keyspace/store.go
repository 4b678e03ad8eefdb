package keyspace

import (
	"sync"
	"time"
)

// Store is the keyspace of a single namespace. Every operation takes the
// caller's notion of now so one request's expiry math stays consistent.
type Store struct {
	mu      sync.RWMutex
	records map[string]record
	gen     uint64
}

func NewStore() *Store {
	return &Store{records: make(map[string]record)}
}

// Put installs value under key, replacing any prior record whole. It reports
// whether a live entry was replaced.
func (s *Store) Put(key string, value []byte, ttl *time.Duration, now time.Time) bool {
	entry := Entry{Value: clone(value), ExpiresAt: ExpiryFor(ttl, now)}

	s.mu.Lock()
	defer s.mu.Unlock()
	prior, ok := s.records[key]
	s.gen++
	s.records[key] = record{entry: entry, gen: s.gen}
	return ok && prior.entry.Live(now)
}

// Get returns a copy of the live value under key.
func (s *Store) Get(key string, now time.Time) ([]byte, bool) {
	s.mu.RLock()
	rec, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if rec.entry.Live(now) {
		return clone(rec.entry.Value), true
	}
	s.removeIfSame(key, rec.gen)
	return nil, false
}

// Delete removes key and reports whether a live entry existed just before.
func (s *Store) Delete(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return false
	}
	delete(s.records, key)
	return rec.entry.Live(now)
}

// Sweep drops every record that is expired at now and returns how many went.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, rec := range s.records {
		if rec.entry.Live(now) {
			continue
		}
		delete(s.records, key)
		removed++
	}
	return removed
}

// Len counts physical records, expired ones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// removeIfSame drops an expired record seen under the read lock, unless a
// concurrent Put has replaced it since.
func (s *Store) removeIfSame(key string, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.records[key]; ok && current.gen == gen {
		delete(s.records, key)
	}
}

func clone(value []byte) []byte {
	if value == nil {
		return []byte{}
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out
}
