package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsReadLimit    = 4096
)

// wsTransport adapts a gorilla connection to the Transport interface.
// gorilla permits one concurrent writer only, so writes are serialized.
type wsTransport struct {
	mu   sync.Mutex
	conn *websocket.Conn

	closeOnce sync.Once
	closeErr  error
}

func (t *wsTransport) WriteMessage(ctx context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	deadline := time.Now().Add(wsWriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) ping(deadline time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.WriteControl(websocket.PingMessage, nil, deadline)
}

func (t *wsTransport) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}

// IdentifyFunc resolves the authenticated recipient for an upgrade
// request. Returning an error rejects the upgrade with 401.
type IdentifyFunc func(r *http.Request) (recipientID string, err error)

// WSHandler upgrades HTTP requests to websocket connections registered
// with a Registry. It owns the per-connection read pump (pongs feed the
// registry heartbeat) and the server-side ping loop.
type WSHandler struct {
	registry *Registry
	identify IdentifyFunc
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// WSHandlerOption configures a WSHandler.
type WSHandlerOption func(*WSHandler)

// WithHandlerLogger sets the logger for the WSHandler.
func WithHandlerLogger(log *slog.Logger) WSHandlerOption {
	return func(h *WSHandler) {
		if log != nil {
			h.logger = log
		}
	}
}

// WithCheckOrigin sets the origin check for upgrade requests. Without
// one, same-origin policy of the upgrader applies.
func WithCheckOrigin(check func(r *http.Request) bool) WSHandlerOption {
	return func(h *WSHandler) {
		h.upgrader.CheckOrigin = check
	}
}

// NewWSHandler creates a websocket endpoint bound to the registry.
func NewWSHandler(registry *Registry, identify IdentifyFunc, opts ...WSHandlerOption) *WSHandler {
	h := &WSHandler{
		registry: registry,
		identify: identify,
		logger:   slog.Default(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	recipientID, err := h.identify(r)
	if err != nil || recipientID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.LogAttrs(r.Context(), slog.LevelDebug, "Websocket upgrade failed",
			logger.RecipientID(recipientID),
			logger.Error(err),
		)
		return
	}

	transport := &wsTransport{conn: conn}
	session, err := h.registry.Connect(r.Context(), recipientID, transport)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()),
			time.Now().Add(time.Second))
		_ = transport.Close()
		return
	}

	go h.pingLoop(transport, session)
	h.readPump(conn, session)

	if err := h.registry.Disconnect(session.ConnectionID); err != nil {
		// Already reaped by the heartbeat monitor.
		_ = transport.Close()
	}
}

// readPump consumes client frames until the connection drops. Pongs and
// any readable frame count as liveness.
func (h *WSHandler) readPump(conn *websocket.Conn, session *Session) {
	readTimeout := 2 * session.HeartbeatInterval

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		_ = h.registry.Heartbeat(session.ConnectionID)
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = h.registry.Heartbeat(session.ConnectionID)
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	}
}

// pingLoop keeps the client's pong handler engaged. It exits once the
// connection leaves the registry.
func (h *WSHandler) pingLoop(transport *wsTransport, session *Session) {
	ticker := time.NewTicker(session.HeartbeatInterval)
	defer ticker.Stop()

	for range ticker.C {
		if _, err := h.registry.Connection(session.ConnectionID); err != nil {
			return
		}
		if err := transport.ping(time.Now().Add(wsWriteTimeout)); err != nil {
			return
		}
	}
}
