// Package store provides bucket state backends for quota evaluation: Redis
// for deployments where multiple instances share one budget, and an
// in-process memory store with identical semantics for tests and single-node
// runs.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/yourusername/quotagate/quota"
)

// MemoryStore keeps bucket state in a process-local map. A single mutex
// around each evaluation gives the same per-key atomicity the Redis script
// provides server-side. State is local to the process, so it does not
// enforce a global budget across replicas.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*memoryEntry
}

type memoryEntry struct {
	state     quota.BucketState
	expiresAt time.Time
}

// Ensure MemoryStore implements the store contract
var _ quota.Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]*memoryEntry)}
}

// Evaluate runs one atomic bucket evaluation for key. Entries past their
// expiry are treated as absent, matching the passive TTL the Redis store
// sets with PEXPIRE.
func (s *MemoryStore) Evaluate(_ context.Context, key string, p quota.Params, requested float64, now time.Time) (quota.Evaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var state *quota.BucketState
	if entry, ok := s.buckets[key]; ok && now.Before(entry.expiresAt) {
		state = &entry.state
	}

	next, ev := quota.EvaluateBucket(state, p, requested, now)
	s.buckets[key] = &memoryEntry{
		state:     next,
		expiresAt: now.Add(quota.StateTTL(p)),
	}
	return ev, nil
}

// Cleanup removes entries whose expiry has passed and returns how many were
// dropped. Expired entries are already invisible to Evaluate; this only
// reclaims memory.
func (s *MemoryStore) Cleanup(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.buckets {
		if !now.Before(entry.expiresAt) {
			delete(s.buckets, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked buckets, including expired ones not yet
// cleaned up.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// Ping reports the store as always reachable.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}
