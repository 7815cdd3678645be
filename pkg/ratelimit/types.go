package ratelimit

import (
	"context"
	"time"
)

// Result contains the result of a rate limit check.
type Result struct {
	// Allowed indicates whether the request is allowed.
	Allowed bool

	// Limit is the maximum number of requests allowed in the window.
	Limit int

	// Remaining is the number of requests remaining in the current window.
	Remaining int

	// ResetAt is the time when the rate limit window resets.
	ResetAt time.Time
}

// RetryAfter returns how long to wait before the next request is allowed.
// Returns 0 if the current request was allowed.
func (r *Result) RetryAfter() time.Duration {
	if r.Allowed {
		return 0
	}
	return time.Until(r.ResetAt)
}

// Store is the storage backend for the sliding window algorithm. A store
// keeps, per key, the timestamps of requests inside the trailing window.
//
// RecordIfAllowed must be atomic: in a multi-process deployment the
// check-and-record has to happen in a single store-side operation (the
// Redis implementation uses one Lua script), never via client-side locking.
type Store interface {
	// RecordIfAllowed prunes timestamps older than the window, then records
	// a new one if fewer than limit remain. Returns whether the timestamp
	// was recorded and the count after the operation.
	RecordIfAllowed(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (allowed bool, count int64, err error)

	// CountInWindow returns the number of timestamps within the trailing
	// window, pruning expired ones as a side effect.
	CountInWindow(ctx context.Context, key string, window time.Duration) (int64, error)

	// Delete removes the given key from the store.
	Delete(ctx context.Context, key string) error
}
