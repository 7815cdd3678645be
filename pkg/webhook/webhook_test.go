package webhook_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/webhook"
)

func TestSender_Send(t *testing.T) {
	t.Parallel()

	t.Run("successful delivery", func(t *testing.T) {
		t.Parallel()

		var received map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		sender := webhook.NewSender()
		err := sender.Send(context.Background(), srv.URL, map[string]any{"event": "test"})
		require.NoError(t, err)
		assert.Equal(t, "test", received["event"])
	})

	t.Run("retries temporary failures", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		sender := webhook.NewSender()
		err := sender.Send(context.Background(), srv.URL, "payload",
			webhook.WithMaxRetries(3),
			webhook.WithBackoff(webhook.FixedBackoff{Interval: time.Millisecond}),
		)
		require.NoError(t, err)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("permanent failure stops retries", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer srv.Close()

		sender := webhook.NewSender()
		err := sender.Send(context.Background(), srv.URL, "payload",
			webhook.WithMaxRetries(5),
			webhook.WithBackoff(webhook.FixedBackoff{Interval: time.Millisecond}),
		)
		assert.ErrorIs(t, err, webhook.ErrPermanentFailure)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("invalid url", func(t *testing.T) {
		t.Parallel()

		sender := webhook.NewSender()
		err := sender.Send(context.Background(), "ftp://example.com", "payload")
		assert.ErrorIs(t, err, webhook.ErrInvalidURL)
	})

	t.Run("signature headers attached", func(t *testing.T) {
		t.Parallel()

		var headers http.Header
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			headers = r.Header.Clone()
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		sender := webhook.NewSender()
		err := sender.Send(context.Background(), srv.URL, "payload", webhook.WithSignature("secret"))
		require.NoError(t, err)
		assert.NotEmpty(t, headers.Get("X-Webhook-Signature"))
		assert.NotEmpty(t, headers.Get("X-Webhook-Timestamp"))
		assert.NotEmpty(t, headers.Get("X-Webhook-ID"))
	})

	t.Run("circuit open rejects without network call", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		cb := webhook.NewCircuitBreaker(2, 1, time.Hour)
		sender := webhook.NewSender()

		for range 2 {
			_ = sender.Send(context.Background(), srv.URL, "payload",
				webhook.WithCircuitBreaker(cb),
				webhook.WithMaxRetries(0),
			)
		}
		require.Equal(t, webhook.CircuitOpen, cb.State())
		before := calls.Load()

		err := sender.Send(context.Background(), srv.URL, "payload", webhook.WithCircuitBreaker(cb))
		assert.True(t, webhook.IsCircuitOpen(err))
		assert.Equal(t, before, calls.Load(), "no request reaches the endpoint while open")
	})
}

func TestBackoffStrategies(t *testing.T) {
	t.Parallel()

	t.Run("exponential growth without jitter", func(t *testing.T) {
		t.Parallel()
		b := webhook.ExponentialBackoff{
			InitialInterval: time.Second,
			MaxInterval:     time.Minute,
			Multiplier:      2,
		}
		assert.Equal(t, time.Duration(0), b.NextInterval(0))
		assert.Equal(t, time.Second, b.NextInterval(1))
		assert.Equal(t, 2*time.Second, b.NextInterval(2))
		assert.Equal(t, 4*time.Second, b.NextInterval(3))
	})

	t.Run("respects max interval", func(t *testing.T) {
		t.Parallel()
		b := webhook.ExponentialBackoff{
			InitialInterval: time.Second,
			MaxInterval:     3 * time.Second,
			Multiplier:      10,
		}
		assert.Equal(t, 3*time.Second, b.NextInterval(5))
	})

	t.Run("fixed backoff", func(t *testing.T) {
		t.Parallel()
		b := webhook.FixedBackoff{Interval: 5 * time.Second}
		assert.Equal(t, 5*time.Second, b.NextInterval(1))
		assert.Equal(t, 5*time.Second, b.NextInterval(10))
	})
}

func TestCircuitBreaker(t *testing.T) {
	t.Parallel()

	t.Run("opens after threshold", func(t *testing.T) {
		t.Parallel()
		cb := webhook.NewCircuitBreaker(3, 2, time.Hour)

		for range 3 {
			require.True(t, cb.Allow())
			cb.RecordFailure()
		}
		assert.Equal(t, webhook.CircuitOpen, cb.State())
		assert.False(t, cb.Allow())
	})

	t.Run("half-open after recovery timeout then closes", func(t *testing.T) {
		t.Parallel()
		cb := webhook.NewCircuitBreaker(1, 2, 10*time.Millisecond)

		cb.RecordFailure()
		require.False(t, cb.Allow())

		time.Sleep(15 * time.Millisecond)
		assert.Equal(t, webhook.CircuitHalfOpen, cb.State())
		assert.True(t, cb.Allow())

		cb.RecordSuccess()
		cb.RecordSuccess()
		assert.Equal(t, webhook.CircuitClosed, cb.State())
	})

	t.Run("failure in half-open reopens", func(t *testing.T) {
		t.Parallel()
		cb := webhook.NewCircuitBreaker(1, 1, 10*time.Millisecond)

		cb.RecordFailure()
		time.Sleep(15 * time.Millisecond)
		require.True(t, cb.Allow())

		cb.RecordFailure()
		assert.False(t, cb.Allow())
	})
}

func TestSignature_RoundTrip(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"alert":"critical"}`)

	headers, err := webhook.SignPayload("secret", payload)
	require.NoError(t, err)

	assert.NoError(t, webhook.VerifySignature("secret", payload, headers, time.Minute))
	assert.Error(t, webhook.VerifySignature("wrong", payload, headers, time.Minute))
	assert.Error(t, webhook.VerifySignature("secret", []byte("tampered"), headers, time.Minute))

	t.Run("rejects stale timestamp", func(t *testing.T) {
		t.Parallel()
		stale := headers
		stale.Timestamp = time.Now().Add(-time.Hour).Unix()
		assert.Error(t, webhook.VerifySignature("secret", payload, stale, time.Minute))
	})
}
