// Package realtime maintains live pub/sub connections to clients and
// queues messages for recipients who are offline.
//
// The Registry is the single owner of connection state: connections,
// per-recipient indexes, topic subscriptions and offline queues all live
// behind one mutex and are mutated only through the public API. Publish
// writes to every connected (and topic-subscribed) connection of a
// recipient; when nothing accepts the write the message is queued with a
// TTL and, for high-priority messages, handed to a durable
// FallbackDispatcher (email, SMS) so important information survives a
// dropped websocket.
//
// A freshly connected client receives its queued backlog in FIFO order
// before anything else. Liveness is heartbeat-driven: WSHandler maps
// websocket pongs onto Registry.Heartbeat, and ReapStale force-closes
// connections silent for more than twice the heartbeat interval.
// ReapStale and PurgeExpired are plain worker tasks:
//
//	runner.Add("heartbeat-monitor", cfg.HeartbeatInterval, registry.ReapStale)
//	runner.Add("queue-cleanup", 5*time.Minute, registry.PurgeExpired)
//
// The Transport interface decouples the registry from gorilla/websocket;
// WSHandler provides the production adapter and tests substitute fakes.
package realtime
