package realtime

import (
	"context"
	"time"
)

// Transport is the write side of one client connection. Implementations
// must tolerate concurrent WriteMessage calls and must make Close
// idempotent.
type Transport interface {
	WriteMessage(ctx context.Context, data []byte) error
	Close() error
}

// Status is the lifecycle state of a real-time connection.
type Status string

const (
	// StatusConnecting is the short window between registration and the
	// completed replay of queued messages.
	StatusConnecting Status = "connecting"
	StatusConnected  Status = "connected"
	// StatusSuspicious marks a connection whose writes fail while its
	// heartbeat is still fresh. Publish skips it; the monitor reaps it.
	StatusSuspicious   Status = "suspicious"
	StatusDisconnected Status = "disconnected"
)

// Connection is the registry's view of one client connection. All fields
// are owned by the registry and mutated only under its mutex; Info
// returns safe copies for callers.
type Connection struct {
	id            string
	recipientID   string
	transport     Transport
	status        Status
	connectedAt   time.Time
	lastHeartbeat time.Time
	topics        map[string]struct{}
}

// ConnectionInfo is a point-in-time snapshot of a connection.
type ConnectionInfo struct {
	ID            string
	RecipientID   string
	Status        Status
	ConnectedAt   time.Time
	LastHeartbeat time.Time
	Topics        []string
}

func (c *Connection) info() ConnectionInfo {
	topics := make([]string, 0, len(c.topics))
	for t := range c.topics {
		topics = append(topics, t)
	}
	return ConnectionInfo{
		ID:            c.id,
		RecipientID:   c.recipientID,
		Status:        c.status,
		ConnectedAt:   c.connectedAt,
		LastHeartbeat: c.lastHeartbeat,
		Topics:        topics,
	}
}

// Session is returned to a freshly connected client.
type Session struct {
	ConnectionID      string
	HeartbeatInterval time.Duration
	AvailableTopics   []string
}
