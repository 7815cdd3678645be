// Package ratelimit provides the sliding window rate limiting used by the
// notification dispatcher to cap per-recipient, per-channel throughput.
//
// The limiter tracks individual request timestamps within a trailing window
// (default 60s) and rejects once the channel's limit is reached. Expired
// entries are pruned lazily on every check; no background sweeper runs.
//
// Two stores are provided:
//
//   - RedisStore: shared across processes. The check-and-record runs as a
//     single Lua script so increment and expiry are atomic on the store
//     side.
//   - MemoryStore: in-process, mutex-guarded. Used standalone in
//     single-process deployments and as the degradation fallback when the
//     shared store is unreachable.
//
// ChannelLimiter wires the two together with per-channel limits and an
// explicit fail-open policy. When the shared store errors, non-critical
// channels degrade to the in-process store (availability over strictness);
// channels where an uncontrolled burst is unacceptable (outbound phone
// calls) fail closed unless explicitly configured otherwise. Degradation
// is always logged.
//
// # Usage
//
//	store, _ := ratelimit.NewRedisStore(redisClient)
//	limiter, _ := ratelimit.NewChannelLimiter(store, ratelimit.DefaultConfig())
//
//	res, err := limiter.Allow(ctx, recipientID, notify.ChannelEmail)
//	if err != nil {
//		// invalid input
//	}
//	if !res.Allowed {
//		// record FAILED "rate limit exceeded", do not retry
//	}
package ratelimit
