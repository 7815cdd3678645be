package realtime_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/notify"
	"github.com/dmitrymomot/notifykit/pkg/realtime"
)

type fakeTransport struct {
	mu         sync.Mutex
	frames     [][]byte
	failWrites bool
	failAfter  int // when > 0, writes fail once that many frames landed
	closed     bool
}

func (t *fakeTransport) WriteMessage(ctx context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failWrites || (t.failAfter > 0 && len(t.frames) >= t.failAfter) {
		return errors.New("broken pipe")
	}
	t.frames = append(t.frames, append([]byte(nil), data...))
	return nil
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTransport) received() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([][]byte(nil), t.frames...)
}

func (t *fakeTransport) setFailWrites(fail bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failWrites = fail
}

func (t *fakeTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() realtime.Config {
	cfg := realtime.DefaultConfig()
	cfg.HeartbeatInterval = 20 * time.Millisecond
	return cfg
}

func message(id string) realtime.Message {
	return realtime.Message{
		ID:       id,
		Type:     "payment_failed",
		Priority: notify.PriorityMedium,
		Data:     map[string]any{"amount": "42.00"},
	}
}

func TestRegistry_Connect(t *testing.T) {
	t.Parallel()

	t.Run("validation", func(t *testing.T) {
		t.Parallel()
		r := realtime.NewRegistry(testConfig(), realtime.WithLogger(quietLogger()))

		_, err := r.Connect(context.Background(), "", &fakeTransport{})
		assert.ErrorIs(t, err, realtime.ErrRecipientRequired)

		_, err = r.Connect(context.Background(), "user-1", nil)
		assert.ErrorIs(t, err, realtime.ErrTransportRequired)
	})

	t.Run("session carries heartbeat interval and topics", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig()
		r := realtime.NewRegistry(cfg, realtime.WithLogger(quietLogger()))

		session, err := r.Connect(context.Background(), "user-1", &fakeTransport{})
		require.NoError(t, err)
		assert.NotEmpty(t, session.ConnectionID)
		assert.Equal(t, cfg.HeartbeatInterval, session.HeartbeatInterval)
		assert.Equal(t, cfg.AvailableTopics, session.AvailableTopics)

		info, err := r.Connection(session.ConnectionID)
		require.NoError(t, err)
		assert.Equal(t, realtime.StatusConnected, info.Status)
		assert.Contains(t, info.Topics, "notifications")
	})

	t.Run("connection limit per recipient", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig()
		cfg.MaxConnectionsPerRecipient = 2
		r := realtime.NewRegistry(cfg, realtime.WithLogger(quietLogger()))

		for range 2 {
			_, err := r.Connect(context.Background(), "user-1", &fakeTransport{})
			require.NoError(t, err)
		}

		_, err := r.Connect(context.Background(), "user-1", &fakeTransport{})
		assert.ErrorIs(t, err, realtime.ErrTooManyConnections)

		// Other recipients are unaffected.
		_, err = r.Connect(context.Background(), "user-2", &fakeTransport{})
		assert.NoError(t, err)
	})

	t.Run("disconnect frees a slot and closes the transport", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig()
		cfg.MaxConnectionsPerRecipient = 1
		r := realtime.NewRegistry(cfg, realtime.WithLogger(quietLogger()))

		transport := &fakeTransport{}
		session, err := r.Connect(context.Background(), "user-1", transport)
		require.NoError(t, err)

		require.NoError(t, r.Disconnect(session.ConnectionID))
		assert.True(t, transport.isClosed())
		assert.ErrorIs(t, r.Disconnect(session.ConnectionID), realtime.ErrConnectionNotFound)

		_, err = r.Connect(context.Background(), "user-1", &fakeTransport{})
		assert.NoError(t, err)
	})
}

func TestRegistry_Publish(t *testing.T) {
	t.Parallel()

	t.Run("delivered frames use the wire envelope", func(t *testing.T) {
		t.Parallel()
		r := realtime.NewRegistry(testConfig(), realtime.WithLogger(quietLogger()))

		transport := &fakeTransport{}
		_, err := r.Connect(context.Background(), "user-1", transport)
		require.NoError(t, err)

		require.True(t, r.Publish(context.Background(), "user-1", message("m-1")))

		frames := transport.received()
		require.Len(t, frames, 1)

		var frame map[string]any
		require.NoError(t, json.Unmarshal(frames[0], &frame))
		assert.Equal(t, "realtime_notification", frame["type"])
		assert.Equal(t, "m-1", frame["message_id"])
		assert.Equal(t, "payment_failed", frame["notification_type"])
		assert.Equal(t, "medium", frame["priority"])

		ts, err := time.Parse(time.RFC3339, frame["timestamp"].(string))
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now(), ts, 5*time.Second)
	})

	t.Run("all connections of the recipient receive the message", func(t *testing.T) {
		t.Parallel()
		r := realtime.NewRegistry(testConfig(), realtime.WithLogger(quietLogger()))

		first := &fakeTransport{}
		second := &fakeTransport{}
		other := &fakeTransport{}
		_, err := r.Connect(context.Background(), "user-1", first)
		require.NoError(t, err)
		_, err = r.Connect(context.Background(), "user-1", second)
		require.NoError(t, err)
		_, err = r.Connect(context.Background(), "user-2", other)
		require.NoError(t, err)

		require.True(t, r.Publish(context.Background(), "user-1", message("m-1")))
		assert.Len(t, first.received(), 1)
		assert.Len(t, second.received(), 1)
		assert.Empty(t, other.received())
	})

	t.Run("offline recipient queues and replays in order", func(t *testing.T) {
		t.Parallel()
		r := realtime.NewRegistry(testConfig(), realtime.WithLogger(quietLogger()))

		for i := range 3 {
			assert.False(t, r.Publish(context.Background(), "user-1", message(fmt.Sprintf("m-%d", i))))
		}
		assert.Equal(t, 3, r.QueuedCount("user-1"))

		transport := &fakeTransport{}
		_, err := r.Connect(context.Background(), "user-1", transport)
		require.NoError(t, err)

		frames := transport.received()
		require.Len(t, frames, 3)
		for i, raw := range frames {
			var frame map[string]any
			require.NoError(t, json.Unmarshal(raw, &frame))
			assert.Equal(t, fmt.Sprintf("m-%d", i), frame["message_id"])
		}
		assert.Zero(t, r.QueuedCount("user-1"))
	})

	t.Run("failed replay keeps the undelivered tail queued", func(t *testing.T) {
		t.Parallel()
		r := realtime.NewRegistry(testConfig(), realtime.WithLogger(quietLogger()))

		for i := range 3 {
			require.False(t, r.Publish(context.Background(), "user-1", message(fmt.Sprintf("m-%d", i))))
		}
		require.Equal(t, 3, r.QueuedCount("user-1"))

		// Every replay write fails: the whole backlog survives.
		dead := &fakeTransport{failWrites: true}
		session, err := r.Connect(context.Background(), "user-1", dead)
		require.NoError(t, err)
		assert.Equal(t, 3, r.QueuedCount("user-1"))
		require.NoError(t, r.Disconnect(session.ConnectionID))

		// One write lands before the transport dies: the failed message
		// and everything behind it stay queued.
		flaky := &fakeTransport{failAfter: 1}
		session, err = r.Connect(context.Background(), "user-1", flaky)
		require.NoError(t, err)
		assert.Equal(t, 2, r.QueuedCount("user-1"))
		require.NoError(t, r.Disconnect(session.ConnectionID))

		// The next healthy connection drains the rest in order.
		healthy := &fakeTransport{}
		_, err = r.Connect(context.Background(), "user-1", healthy)
		require.NoError(t, err)

		frames := healthy.received()
		require.Len(t, frames, 2)
		for i, raw := range frames {
			var frame map[string]any
			require.NoError(t, json.Unmarshal(raw, &frame))
			assert.Equal(t, fmt.Sprintf("m-%d", i+1), frame["message_id"])
		}
		assert.Zero(t, r.QueuedCount("user-1"))
	})

	t.Run("expired queued messages are not replayed", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig()
		cfg.QueueTTL = 20 * time.Millisecond
		r := realtime.NewRegistry(cfg, realtime.WithLogger(quietLogger()))

		r.Publish(context.Background(), "user-1", message("stale"))
		time.Sleep(40 * time.Millisecond)
		r.Publish(context.Background(), "user-1", message("fresh"))

		transport := &fakeTransport{}
		_, err := r.Connect(context.Background(), "user-1", transport)
		require.NoError(t, err)

		frames := transport.received()
		require.Len(t, frames, 1)
		var frame map[string]any
		require.NoError(t, json.Unmarshal(frames[0], &frame))
		assert.Equal(t, "fresh", frame["message_id"])
	})

	t.Run("queue drops oldest at capacity", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig()
		cfg.QueueLimit = 2
		r := realtime.NewRegistry(cfg, realtime.WithLogger(quietLogger()))

		for i := range 3 {
			r.Publish(context.Background(), "user-1", message(fmt.Sprintf("m-%d", i)))
		}
		assert.Equal(t, 2, r.QueuedCount("user-1"))

		transport := &fakeTransport{}
		_, err := r.Connect(context.Background(), "user-1", transport)
		require.NoError(t, err)

		frames := transport.received()
		require.Len(t, frames, 2)
		var frame map[string]any
		require.NoError(t, json.Unmarshal(frames[0], &frame))
		assert.Equal(t, "m-1", frame["message_id"], "oldest message was dropped")
	})

	t.Run("failing transport is skipped on the next publish", func(t *testing.T) {
		t.Parallel()
		r := realtime.NewRegistry(testConfig(), realtime.WithLogger(quietLogger()))

		broken := &fakeTransport{}
		session, err := r.Connect(context.Background(), "user-1", broken)
		require.NoError(t, err)
		broken.setFailWrites(true)

		assert.False(t, r.Publish(context.Background(), "user-1", message("m-1")))

		info, err := r.Connection(session.ConnectionID)
		require.NoError(t, err)
		assert.Equal(t, realtime.StatusSuspicious, info.Status)

		// A heartbeat from a live client restores the connection.
		require.NoError(t, r.Heartbeat(session.ConnectionID))
		info, err = r.Connection(session.ConnectionID)
		require.NoError(t, err)
		assert.Equal(t, realtime.StatusConnected, info.Status)
	})
}

func TestRegistry_Topics(t *testing.T) {
	t.Parallel()

	r := realtime.NewRegistry(testConfig(), realtime.WithLogger(quietLogger()))

	subscribed := &fakeTransport{}
	unsubscribed := &fakeTransport{}
	subSession, err := r.Connect(context.Background(), "user-1", subscribed)
	require.NoError(t, err)
	_, err = r.Connect(context.Background(), "user-2", unsubscribed)
	require.NoError(t, err)

	require.NoError(t, r.Subscribe(subSession.ConnectionID, "alerts"))
	assert.ErrorIs(t, r.Subscribe(subSession.ConnectionID, "nope"), realtime.ErrUnknownTopic)
	assert.ErrorIs(t, r.Subscribe("missing", "alerts"), realtime.ErrConnectionNotFound)

	msg := message("m-1")
	msg.Topic = "alerts"

	// Direct publish honors topic subscription per connection.
	assert.True(t, r.Publish(context.Background(), "user-1", msg))
	assert.False(t, r.Publish(context.Background(), "user-2", msg), "unsubscribed connection does not receive topic messages")

	// Broadcast reaches subscribers across recipients.
	assert.Equal(t, 1, r.Broadcast(context.Background(), "alerts", msg))

	require.NoError(t, r.Unsubscribe(subSession.ConnectionID, "alerts"))
	assert.Equal(t, 0, r.Broadcast(context.Background(), "alerts", msg))
}

func TestRegistry_ReapStale(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.HeartbeatInterval = 10 * time.Millisecond
	r := realtime.NewRegistry(cfg, realtime.WithLogger(quietLogger()))

	stale := &fakeTransport{}
	staleSession, err := r.Connect(context.Background(), "user-1", stale)
	require.NoError(t, err)
	require.NoError(t, r.Subscribe(staleSession.ConnectionID, "alerts"))

	// No heartbeat for more than twice the interval.
	time.Sleep(30 * time.Millisecond)

	fresh := &fakeTransport{}
	freshSession, err := r.Connect(context.Background(), "user-2", fresh)
	require.NoError(t, err)

	require.NoError(t, r.ReapStale(context.Background()))

	_, err = r.Connection(staleSession.ConnectionID)
	assert.ErrorIs(t, err, realtime.ErrConnectionNotFound)
	assert.True(t, stale.isClosed())
	assert.Empty(t, r.Connections("user-1"))

	msg := message("m-1")
	msg.Topic = "alerts"
	assert.Equal(t, 0, r.Broadcast(context.Background(), "alerts", msg), "reaped connection left all topics")

	_, err = r.Connection(freshSession.ConnectionID)
	assert.NoError(t, err)
}

func TestRegistry_PurgeExpired(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.QueueTTL = 10 * time.Millisecond
	r := realtime.NewRegistry(cfg, realtime.WithLogger(quietLogger()))

	r.Publish(context.Background(), "user-1", message("m-1"))
	require.Equal(t, 1, r.QueuedCount("user-1"))

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, r.PurgeExpired(context.Background()))
	assert.Zero(t, r.QueuedCount("user-1"))
}

func TestRegistry_Fallback(t *testing.T) {
	t.Parallel()

	type fallbackCall struct {
		recipientID string
		msg         realtime.Message
	}

	newRecorder := func() (*[]fallbackCall, realtime.DispatchFallbackFunc, *sync.Mutex) {
		var mu sync.Mutex
		calls := &[]fallbackCall{}
		fn := realtime.DispatchFallbackFunc(func(ctx context.Context, recipientID string, msg realtime.Message) error {
			mu.Lock()
			defer mu.Unlock()
			*calls = append(*calls, fallbackCall{recipientID: recipientID, msg: msg})
			return nil
		})
		return calls, fn, &mu
	}

	t.Run("undelivered high priority goes to fallback", func(t *testing.T) {
		t.Parallel()
		calls, fn, mu := newRecorder()
		r := realtime.NewRegistry(testConfig(), realtime.WithLogger(quietLogger()), realtime.WithFallback(fn))

		msg := message("m-1")
		msg.Priority = notify.PriorityHigh
		assert.False(t, r.Publish(context.Background(), "user-1", msg))

		mu.Lock()
		defer mu.Unlock()
		require.Len(t, *calls, 1)
		assert.Equal(t, "user-1", (*calls)[0].recipientID)
		assert.Equal(t, "m-1", (*calls)[0].msg.ID)
	})

	t.Run("medium priority is queued only", func(t *testing.T) {
		t.Parallel()
		calls, fn, mu := newRecorder()
		r := realtime.NewRegistry(testConfig(), realtime.WithLogger(quietLogger()), realtime.WithFallback(fn))

		assert.False(t, r.Publish(context.Background(), "user-1", message("m-1")))
		assert.Equal(t, 1, r.QueuedCount("user-1"))

		mu.Lock()
		defer mu.Unlock()
		assert.Empty(t, *calls)
	})

	t.Run("delivered message skips fallback", func(t *testing.T) {
		t.Parallel()
		calls, fn, mu := newRecorder()
		r := realtime.NewRegistry(testConfig(), realtime.WithLogger(quietLogger()), realtime.WithFallback(fn))

		_, err := r.Connect(context.Background(), "user-1", &fakeTransport{})
		require.NoError(t, err)

		msg := message("m-1")
		msg.Priority = notify.PriorityCritical
		assert.True(t, r.Publish(context.Background(), "user-1", msg))

		mu.Lock()
		defer mu.Unlock()
		assert.Empty(t, *calls)
	})
}
