package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements an in-memory sliding window store. It is the
// single-process fallback used when the shared store is unavailable.
// Expired timestamps are pruned lazily on every operation, which bounds
// memory without a dedicated cleanup goroutine.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

// NewMemoryStore creates a new in-memory sliding window store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string][]time.Time),
	}
}

// RecordIfAllowed prunes expired timestamps for the key, then records a
// new one if the count is below limit.
func (s *MemoryStore) RecordIfAllowed(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (bool, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	valid := s.prune(key, now.Add(-window))
	if len(valid) >= limit {
		return false, int64(len(valid)), nil
	}

	valid = append(valid, now)
	s.windows[key] = valid
	return true, int64(len(valid)), nil
}

// CountInWindow returns the number of timestamps within the trailing window.
func (s *MemoryStore) CountInWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	valid := s.prune(key, time.Now().Add(-window))
	return int64(len(valid)), nil
}

// Delete removes the given key from the store.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.windows, key)
	return nil
}

// prune drops timestamps at or before cutoff. Caller must hold s.mu.
// Empty windows are removed entirely so idle keys do not accumulate.
func (s *MemoryStore) prune(key string, cutoff time.Time) []time.Time {
	timestamps, ok := s.windows[key]
	if !ok {
		return nil
	}

	valid := timestamps[:0]
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}

	if len(valid) == 0 {
		delete(s.windows, key)
		return nil
	}

	s.windows[key] = valid
	return valid
}
