package ratelimit_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/notify"
	"github.com/dmitrymomot/notifykit/pkg/ratelimit"
)

// failingStore simulates an unreachable shared store.
type failingStore struct{}

func (failingStore) RecordIfAllowed(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (bool, int64, error) {
	return false, 0, errors.New("connection refused")
}

func (failingStore) CountInWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	return 0, errors.New("connection refused")
}

func (failingStore) Delete(ctx context.Context, key string) error {
	return errors.New("connection refused")
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestChannelLimiter_PerChannelLimits(t *testing.T) {
	t.Parallel()

	cfg := ratelimit.DefaultConfig()
	cfg.Window = time.Minute

	limiter, err := ratelimit.NewChannelLimiter(ratelimit.NewMemoryStore(), cfg,
		ratelimit.WithLogger(quietLogger()))
	require.NoError(t, err)

	ctx := context.Background()

	t.Run("phone call limit of one", func(t *testing.T) {
		t.Parallel()
		res, err := limiter.Allow(ctx, "caller", notify.ChannelPhoneCall)
		require.NoError(t, err)
		assert.True(t, res.Allowed)

		res, err = limiter.Allow(ctx, "caller", notify.ChannelPhoneCall)
		require.NoError(t, err)
		assert.False(t, res.Allowed)
	})

	t.Run("channels are counted independently", func(t *testing.T) {
		t.Parallel()
		for range 5 {
			res, err := limiter.Allow(ctx, "mixed", notify.ChannelSMS)
			require.NoError(t, err)
			require.True(t, res.Allowed)
		}

		res, err := limiter.Allow(ctx, "mixed", notify.ChannelSMS)
		require.NoError(t, err)
		assert.False(t, res.Allowed, "sms exhausted")

		res, err = limiter.Allow(ctx, "mixed", notify.ChannelEmail)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "email unaffected by sms counters")
	})

	t.Run("recipients are counted independently", func(t *testing.T) {
		t.Parallel()
		res, err := limiter.Allow(ctx, "other-recipient", notify.ChannelPhoneCall)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	})

	t.Run("result carries the channel's window", func(t *testing.T) {
		t.Parallel()
		res, err := limiter.Allow(ctx, "meta", notify.ChannelEmail)
		require.NoError(t, err)
		assert.Equal(t, cfg.EmailPerWindow, res.Limit)
		assert.Equal(t, cfg.EmailPerWindow-1, res.Remaining)
		assert.WithinDuration(t, time.Now().Add(cfg.Window), res.ResetAt, 5*time.Second)
	})

	t.Run("channel without a configured limit", func(t *testing.T) {
		t.Parallel()
		_, err := limiter.Allow(ctx, "user", notify.Channel("carrier_pigeon"))
		assert.ErrorIs(t, err, ratelimit.ErrInvalidLimit)
	})

	t.Run("empty recipient", func(t *testing.T) {
		t.Parallel()
		_, err := limiter.Allow(ctx, "", notify.ChannelEmail)
		assert.ErrorIs(t, err, ratelimit.ErrKeyRequired)
	})
}

func TestChannelLimiter_FailOpenPolicy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("non-critical channel degrades to fallback", func(t *testing.T) {
		t.Parallel()
		cfg := ratelimit.DefaultConfig()
		limiter, err := ratelimit.NewChannelLimiter(failingStore{}, cfg,
			ratelimit.WithLogger(quietLogger()))
		require.NoError(t, err)

		// Fallback still enforces the local limit.
		for range cfg.EmailPerWindow {
			res, err := limiter.Allow(ctx, "user", notify.ChannelEmail)
			require.NoError(t, err)
			assert.True(t, res.Allowed)
		}
		res, err := limiter.Allow(ctx, "user", notify.ChannelEmail)
		require.NoError(t, err)
		assert.False(t, res.Allowed)
	})

	t.Run("phone call fails closed by default", func(t *testing.T) {
		t.Parallel()
		limiter, err := ratelimit.NewChannelLimiter(failingStore{}, ratelimit.DefaultConfig(),
			ratelimit.WithLogger(quietLogger()))
		require.NoError(t, err)

		res, err := limiter.Allow(ctx, "user", notify.ChannelPhoneCall)
		require.NoError(t, err)
		assert.False(t, res.Allowed)
	})

	t.Run("phone call fails open when configured", func(t *testing.T) {
		t.Parallel()
		cfg := ratelimit.DefaultConfig()
		cfg.FailOpenCriticalChannels = true

		limiter, err := ratelimit.NewChannelLimiter(failingStore{}, cfg,
			ratelimit.WithLogger(quietLogger()))
		require.NoError(t, err)

		res, err := limiter.Allow(ctx, "user", notify.ChannelPhoneCall)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	})

	t.Run("fail closed globally", func(t *testing.T) {
		t.Parallel()
		cfg := ratelimit.DefaultConfig()
		cfg.FailOpen = false

		limiter, err := ratelimit.NewChannelLimiter(failingStore{}, cfg,
			ratelimit.WithLogger(quietLogger()))
		require.NoError(t, err)

		res, err := limiter.Allow(ctx, "user", notify.ChannelEmail)
		require.NoError(t, err)
		assert.False(t, res.Allowed)
	})
}
