package realtime

import "time"

// queuedMessage holds an encoded frame waiting for its recipient to come
// back online. The payload is encoded at publish time so replay preserves
// the original timestamp.
type queuedMessage struct {
	payload   []byte
	expiresAt time.Time
}

// enqueue appends to a recipient's FIFO queue, dropping the oldest entry
// once the queue is full. Called under the registry mutex.
func enqueue(queue []queuedMessage, msg queuedMessage, limit int) []queuedMessage {
	if len(queue) >= limit {
		queue = queue[1:]
	}
	return append(queue, msg)
}

// pruneExpired drops entries past their TTL, preserving order. Called
// under the registry mutex.
func pruneExpired(queue []queuedMessage, now time.Time) []queuedMessage {
	kept := queue[:0]
	for _, m := range queue {
		if now.Before(m.expiresAt) {
			kept = append(kept, m)
		}
	}
	return kept
}
