package realtime

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notify"
)

// Config holds the real-time connection registry settings.
type Config struct {
	MaxConnectionsPerRecipient int           `env:"REALTIME_MAX_CONNECTIONS" envDefault:"5"`
	HeartbeatInterval          time.Duration `env:"REALTIME_HEARTBEAT_INTERVAL" envDefault:"30s"`
	QueueTTL                   time.Duration `env:"REALTIME_QUEUE_TTL" envDefault:"1h"`
	QueueLimit                 int           `env:"REALTIME_QUEUE_LIMIT" envDefault:"100"`
	DefaultTopics              []string      `env:"REALTIME_DEFAULT_TOPICS" envDefault:"notifications"`
	AvailableTopics            []string      `env:"REALTIME_AVAILABLE_TOPICS" envDefault:"notifications,alerts"`
	// FallbackPriority is the minimum priority that triggers durable
	// fallback delivery for messages no live connection accepted.
	FallbackPriority notify.Priority `env:"REALTIME_FALLBACK_PRIORITY" envDefault:"2"`
}

// DefaultConfig returns the registry settings used when no configuration
// is loaded.
func DefaultConfig() Config {
	return Config{
		MaxConnectionsPerRecipient: 5,
		HeartbeatInterval:          30 * time.Second,
		QueueTTL:                   time.Hour,
		QueueLimit:                 100,
		DefaultTopics:              []string{"notifications"},
		AvailableTopics:            []string{"notifications", "alerts"},
		FallbackPriority:           notify.PriorityHigh,
	}
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.MaxConnectionsPerRecipient <= 0 {
		c.MaxConnectionsPerRecipient = def.MaxConnectionsPerRecipient
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = def.HeartbeatInterval
	}
	if c.QueueTTL <= 0 {
		c.QueueTTL = def.QueueTTL
	}
	if c.QueueLimit <= 0 {
		c.QueueLimit = def.QueueLimit
	}
	if c.FallbackPriority <= 0 {
		c.FallbackPriority = def.FallbackPriority
	}
	return c
}

// FallbackDispatcher routes a message that found no live connection onto
// durable delivery channels. Implementations resolve the recipient's
// addresses; the registry only decides when to fall back.
type FallbackDispatcher interface {
	DispatchFallback(ctx context.Context, recipientID string, msg Message) error
}

// DispatchFallbackFunc adapts a function to the FallbackDispatcher interface.
type DispatchFallbackFunc func(ctx context.Context, recipientID string, msg Message) error

func (f DispatchFallbackFunc) DispatchFallback(ctx context.Context, recipientID string, msg Message) error {
	return f(ctx, recipientID, msg)
}

// Registry owns every live real-time connection, the per-recipient
// offline queues and the topic subscription index. All shared state lives
// behind one mutex and is mutated only through the public API.
type Registry struct {
	config   Config
	logger   *slog.Logger
	fallback FallbackDispatcher

	mu          sync.Mutex
	conns       map[string]*Connection
	byRecipient map[string]map[string]*Connection
	topics      map[string]map[string]struct{} // topic -> connection IDs
	queues      map[string][]queuedMessage
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger for the Registry.
func WithLogger(log *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if log != nil {
			r.logger = log
		}
	}
}

// WithFallback sets the durable fallback for undelivered high-priority
// messages. Without one, such messages are only queued.
func WithFallback(fallback FallbackDispatcher) RegistryOption {
	return func(r *Registry) {
		r.fallback = fallback
	}
}

// NewRegistry creates a connection registry with the given settings.
func NewRegistry(cfg Config, opts ...RegistryOption) *Registry {
	r := &Registry{
		config:      cfg.normalize(),
		logger:      slog.Default(),
		conns:       make(map[string]*Connection),
		byRecipient: make(map[string]map[string]*Connection),
		topics:      make(map[string]map[string]struct{}),
		queues:      make(map[string][]queuedMessage),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Connect registers a transport for a recipient, subscribes it to the
// default topics and replays any queued messages in FIFO order. Rejected
// when the recipient already holds the maximum number of connections.
func (r *Registry) Connect(ctx context.Context, recipientID string, transport Transport) (*Session, error) {
	if recipientID == "" {
		return nil, ErrRecipientRequired
	}
	if transport == nil {
		return nil, ErrTransportRequired
	}

	now := time.Now()
	conn := &Connection{
		id:            uuid.New().String(),
		recipientID:   recipientID,
		transport:     transport,
		status:        StatusConnecting,
		connectedAt:   now,
		lastHeartbeat: now,
		topics:        make(map[string]struct{}, len(r.config.DefaultTopics)),
	}

	r.mu.Lock()
	if len(r.byRecipient[recipientID]) >= r.config.MaxConnectionsPerRecipient {
		r.mu.Unlock()
		return nil, ErrTooManyConnections
	}

	r.conns[conn.id] = conn
	if r.byRecipient[recipientID] == nil {
		r.byRecipient[recipientID] = make(map[string]*Connection)
	}
	r.byRecipient[recipientID][conn.id] = conn
	for _, topic := range r.config.DefaultTopics {
		conn.topics[topic] = struct{}{}
		r.subscribeLocked(conn.id, topic)
	}

	// Take the backlog out under the lock, replay it outside: transport
	// writes must not block other registry operations.
	backlog := pruneExpired(r.queues[recipientID], now)
	delete(r.queues, recipientID)
	r.mu.Unlock()

	replayed := 0
	for _, queued := range backlog {
		if err := transport.WriteMessage(ctx, queued.payload); err != nil {
			r.logger.LogAttrs(ctx, slog.LevelWarn, "Queued message replay failed",
				logger.ConnectionID(conn.id),
				logger.RecipientID(recipientID),
				logger.Error(err),
			)
			break
		}
		replayed++
	}
	unsent := backlog[replayed:]

	r.mu.Lock()
	if _, still := r.conns[conn.id]; still {
		conn.status = StatusConnected
	}
	// The failed message and everything behind it go back to the front of
	// the queue, ahead of anything published during the replay. The cap
	// still holds, dropping oldest first.
	if len(unsent) > 0 {
		requeued := append(slices.Clone(unsent), r.queues[recipientID]...)
		if excess := len(requeued) - r.config.QueueLimit; excess > 0 {
			requeued = requeued[excess:]
		}
		r.queues[recipientID] = requeued
	}
	r.mu.Unlock()

	r.logger.LogAttrs(ctx, slog.LevelInfo, "Real-time connection established",
		logger.ConnectionID(conn.id),
		logger.RecipientID(recipientID),
		slog.Int("replayed", replayed),
	)

	return &Session{
		ConnectionID:      conn.id,
		HeartbeatInterval: r.config.HeartbeatInterval,
		AvailableTopics:   slices.Clone(r.config.AvailableTopics),
	}, nil
}

// Disconnect removes a connection from every index and closes its transport.
func (r *Registry) Disconnect(connID string) error {
	r.mu.Lock()
	conn, ok := r.conns[connID]
	if !ok {
		r.mu.Unlock()
		return ErrConnectionNotFound
	}
	r.removeLocked(conn)
	r.mu.Unlock()

	return conn.transport.Close()
}

// Subscribe adds a connection to a topic. Topics outside the configured
// available set are rejected.
func (r *Registry) Subscribe(connID, topic string) error {
	if len(r.config.AvailableTopics) > 0 && !slices.Contains(r.config.AvailableTopics, topic) {
		return ErrUnknownTopic
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[connID]
	if !ok {
		return ErrConnectionNotFound
	}
	conn.topics[topic] = struct{}{}
	r.subscribeLocked(connID, topic)
	return nil
}

// Unsubscribe removes a connection from a topic.
func (r *Registry) Unsubscribe(connID, topic string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[connID]
	if !ok {
		return ErrConnectionNotFound
	}
	delete(conn.topics, topic)
	r.unsubscribeLocked(connID, topic)
	return nil
}

// Heartbeat records client liveness. A suspicious connection whose
// client still heartbeats is restored to connected.
func (r *Registry) Heartbeat(connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[connID]
	if !ok {
		return ErrConnectionNotFound
	}
	conn.lastHeartbeat = time.Now()
	if conn.status == StatusSuspicious {
		conn.status = StatusConnected
	}
	return nil
}

// Publish delivers a message to every connected (and, when the message
// carries a topic, subscribed) connection of the recipient. Returns true
// when at least one connection accepted the write. Undelivered messages
// are queued for replay; undelivered high-priority messages additionally
// go to the durable fallback.
func (r *Registry) Publish(ctx context.Context, recipientID string, msg Message) bool {
	return r.publish(ctx, recipientID, msg, true)
}

func (r *Registry) publish(ctx context.Context, recipientID string, msg Message, allowFallback bool) bool {
	now := time.Now()
	payload, err := msg.encode(now)
	if err != nil {
		r.logger.LogAttrs(ctx, slog.LevelError, "Failed to encode real-time message",
			logger.MessageID(msg.ID),
			logger.Error(err),
		)
		return false
	}

	r.mu.Lock()
	targets := make([]*Connection, 0, len(r.byRecipient[recipientID]))
	for _, conn := range r.byRecipient[recipientID] {
		if conn.status != StatusConnected {
			continue
		}
		if msg.Topic != "" {
			if _, subscribed := conn.topics[msg.Topic]; !subscribed {
				continue
			}
		}
		targets = append(targets, conn)
	}
	r.mu.Unlock()

	delivered := false
	for _, conn := range targets {
		if err := conn.transport.WriteMessage(ctx, payload); err != nil {
			r.noteWriteFailure(ctx, conn, err)
			continue
		}
		delivered = true
	}

	if !delivered {
		r.mu.Lock()
		r.queues[recipientID] = enqueue(r.queues[recipientID], queuedMessage{
			payload:   payload,
			expiresAt: now.Add(r.config.QueueTTL),
		}, r.config.QueueLimit)
		r.mu.Unlock()

		if allowFallback && r.fallback != nil && msg.Priority.AtLeast(r.config.FallbackPriority) {
			if err := r.fallback.DispatchFallback(ctx, recipientID, msg); err != nil {
				r.logger.LogAttrs(ctx, slog.LevelWarn, "Durable fallback delivery failed",
					logger.MessageID(msg.ID),
					logger.RecipientID(recipientID),
					logger.Error(err),
				)
			}
		}
	}

	return delivered
}

// Broadcast delivers a message to every connection subscribed to the
// topic, across recipients. Offline recipients are not queued: broadcast
// traffic is current-state information, not per-recipient history.
func (r *Registry) Broadcast(ctx context.Context, topic string, msg Message) int {
	payload, err := msg.encode(time.Now())
	if err != nil {
		r.logger.LogAttrs(ctx, slog.LevelError, "Failed to encode real-time message",
			logger.MessageID(msg.ID),
			logger.Error(err),
		)
		return 0
	}

	r.mu.Lock()
	targets := make([]*Connection, 0, len(r.topics[topic]))
	for connID := range r.topics[topic] {
		if conn, ok := r.conns[connID]; ok && conn.status == StatusConnected {
			targets = append(targets, conn)
		}
	}
	r.mu.Unlock()

	delivered := 0
	for _, conn := range targets {
		if err := conn.transport.WriteMessage(ctx, payload); err != nil {
			r.noteWriteFailure(ctx, conn, err)
			continue
		}
		delivered++
	}
	return delivered
}

// ReapStale disconnects connections whose heartbeat is older than twice
// the heartbeat interval, along with connections already marked
// suspicious. Intended to run periodically under a worker runner.
func (r *Registry) ReapStale(ctx context.Context) error {
	cutoff := time.Now().Add(-2 * r.config.HeartbeatInterval)

	r.mu.Lock()
	var stale []*Connection
	for _, conn := range r.conns {
		if conn.status == StatusSuspicious || conn.lastHeartbeat.Before(cutoff) {
			stale = append(stale, conn)
		}
	}
	for _, conn := range stale {
		r.removeLocked(conn)
	}
	r.mu.Unlock()

	for _, conn := range stale {
		if err := conn.transport.Close(); err != nil {
			r.logger.LogAttrs(ctx, slog.LevelDebug, "Closing stale transport failed",
				logger.ConnectionID(conn.id),
				logger.Error(err),
			)
		}
		r.logger.LogAttrs(ctx, slog.LevelInfo, "Stale connection reaped",
			logger.ConnectionID(conn.id),
			logger.RecipientID(conn.recipientID),
		)
	}
	return nil
}

// PurgeExpired drops queued messages past their TTL. Intended to run
// periodically under a worker runner.
func (r *Registry) PurgeExpired(ctx context.Context) error {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	for recipientID, queue := range r.queues {
		pruned := pruneExpired(queue, now)
		if len(pruned) == 0 {
			delete(r.queues, recipientID)
			continue
		}
		r.queues[recipientID] = pruned
	}
	return nil
}

// Connection returns a snapshot of one connection.
func (r *Registry) Connection(connID string) (ConnectionInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[connID]
	if !ok {
		return ConnectionInfo{}, ErrConnectionNotFound
	}
	return conn.info(), nil
}

// Connections returns snapshots of a recipient's live connections.
func (r *Registry) Connections(recipientID string) []ConnectionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]ConnectionInfo, 0, len(r.byRecipient[recipientID]))
	for _, conn := range r.byRecipient[recipientID] {
		infos = append(infos, conn.info())
	}
	return infos
}

// QueuedCount reports how many messages wait for a recipient.
func (r *Registry) QueuedCount(recipientID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queues[recipientID])
}

// HeartbeatInterval exposes the configured interval, matching what
// connected clients receive in their Session.
func (r *Registry) HeartbeatInterval() time.Duration {
	return r.config.HeartbeatInterval
}

// noteWriteFailure downgrades a connection after a failed write: fresh
// heartbeat means suspicious (skip until the monitor decides), stale
// heartbeat means gone.
func (r *Registry) noteWriteFailure(ctx context.Context, conn *Connection, cause error) {
	cutoff := time.Now().Add(-2 * r.config.HeartbeatInterval)

	r.mu.Lock()
	if _, ok := r.conns[conn.id]; !ok {
		r.mu.Unlock()
		return
	}
	gone := conn.lastHeartbeat.Before(cutoff)
	if gone {
		r.removeLocked(conn)
	} else {
		conn.status = StatusSuspicious
	}
	r.mu.Unlock()

	if gone {
		_ = conn.transport.Close()
	}
	r.logger.LogAttrs(ctx, slog.LevelWarn, "Real-time write failed",
		logger.ConnectionID(conn.id),
		logger.RecipientID(conn.recipientID),
		slog.Bool("disconnected", gone),
		logger.Error(cause),
	)
}

func (r *Registry) subscribeLocked(connID, topic string) {
	if r.topics[topic] == nil {
		r.topics[topic] = make(map[string]struct{})
	}
	r.topics[topic][connID] = struct{}{}
}

func (r *Registry) unsubscribeLocked(connID, topic string) {
	if subs, ok := r.topics[topic]; ok {
		delete(subs, connID)
		if len(subs) == 0 {
			delete(r.topics, topic)
		}
	}
}

// removeLocked drops a connection from every index and marks it
// disconnected. Transport closing is the caller's job, outside the lock.
func (r *Registry) removeLocked(conn *Connection) {
	delete(r.conns, conn.id)
	if conns, ok := r.byRecipient[conn.recipientID]; ok {
		delete(conns, conn.id)
		if len(conns) == 0 {
			delete(r.byRecipient, conn.recipientID)
		}
	}
	for topic := range conn.topics {
		r.unsubscribeLocked(conn.id, topic)
	}
	conn.status = StatusDisconnected
}
