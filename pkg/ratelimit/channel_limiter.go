package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notify"
)

// Config holds the per-channel sliding window limits. The window applies
// to all channels; limits are counted per (recipient, channel) key.
//
// FailOpen controls behavior when the shared store is unavailable: when
// true, checks degrade to the in-process fallback store and keep allowing
// traffic. FailOpenCriticalChannels extends that degradation to channels
// marked critical (phone calls); it defaults to false so an outage of the
// shared store can never cause a burst of outbound calls. This mirrors the
// availability-over-safety tradeoff of the original deployment and is an
// explicit knob rather than hard-coded behavior.
type Config struct {
	Window                   time.Duration `env:"RATELIMIT_WINDOW" envDefault:"60s"`
	EmailPerWindow           int           `env:"RATELIMIT_EMAIL" envDefault:"10"`
	SMSPerWindow             int           `env:"RATELIMIT_SMS" envDefault:"5"`
	PushPerWindow            int           `env:"RATELIMIT_PUSH" envDefault:"50"`
	WebSocketPerWindow       int           `env:"RATELIMIT_WEBSOCKET" envDefault:"120"`
	InAppPerWindow           int           `env:"RATELIMIT_IN_APP" envDefault:"60"`
	PhoneCallPerWindow       int           `env:"RATELIMIT_PHONE_CALL" envDefault:"1"`
	FailOpen                 bool          `env:"RATELIMIT_FAIL_OPEN" envDefault:"true"`
	FailOpenCriticalChannels bool          `env:"RATELIMIT_FAIL_OPEN_CRITICAL" envDefault:"false"`
}

// DefaultConfig returns the limits used when no configuration is loaded.
func DefaultConfig() Config {
	return Config{
		Window:             time.Minute,
		EmailPerWindow:     10,
		SMSPerWindow:       5,
		PushPerWindow:      50,
		WebSocketPerWindow: 120,
		InAppPerWindow:     60,
		PhoneCallPerWindow: 1,
		FailOpen:           true,
	}
}

func (c Config) limitFor(ch notify.Channel) int {
	switch ch {
	case notify.ChannelEmail:
		return c.EmailPerWindow
	case notify.ChannelSMS:
		return c.SMSPerWindow
	case notify.ChannelPush:
		return c.PushPerWindow
	case notify.ChannelWebSocket:
		return c.WebSocketPerWindow
	case notify.ChannelInApp:
		return c.InAppPerWindow
	case notify.ChannelPhoneCall:
		return c.PhoneCallPerWindow
	default:
		return 0
	}
}

// criticalChannel reports whether the channel must never fail open by
// default when the shared store is down.
func criticalChannel(ch notify.Channel) bool {
	return ch == notify.ChannelPhoneCall
}

// ChannelLimiter enforces per-(recipient, channel) sliding window limits.
// It composes one SlidingWindow per channel over the shared store and a
// second set over an in-process fallback store; when the shared store
// errors the check degrades to the fallback set under the configured
// fail-open policy. Safe for concurrent use.
type ChannelLimiter struct {
	config   Config
	store    Store
	fallback Store
	logger   *slog.Logger

	// windows and fallbackWindows are built once in the constructor and
	// read-only afterwards.
	windows         map[notify.Channel]*SlidingWindow
	fallbackWindows map[notify.Channel]*SlidingWindow
}

// ChannelLimiterOption configures a ChannelLimiter.
type ChannelLimiterOption func(*ChannelLimiter)

// WithLogger sets the logger used to report store degradation.
func WithLogger(log *slog.Logger) ChannelLimiterOption {
	return func(l *ChannelLimiter) {
		if log != nil {
			l.logger = log
		}
	}
}

// WithFallbackStore overrides the in-process fallback store.
func WithFallbackStore(store Store) ChannelLimiterOption {
	return func(l *ChannelLimiter) {
		if store != nil {
			l.fallback = store
		}
	}
}

// NewChannelLimiter creates a limiter backed by the given store. The store
// is typically a RedisStore shared across processes; passing a MemoryStore
// is valid for single-process deployments.
func NewChannelLimiter(store Store, cfg Config, opts ...ChannelLimiterOption) (*ChannelLimiter, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}

	l := &ChannelLimiter{
		config:   cfg,
		store:    store,
		fallback: NewMemoryStore(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}

	var err error
	if l.windows, err = buildWindows(l.store, cfg); err != nil {
		return nil, err
	}
	if l.fallbackWindows, err = buildWindows(l.fallback, cfg); err != nil {
		return nil, err
	}
	return l, nil
}

// buildWindows creates one sliding window per channel with a configured
// limit. Channels with a zero limit get no window and fail Allow with
// ErrInvalidLimit.
func buildWindows(store Store, cfg Config) (map[notify.Channel]*SlidingWindow, error) {
	windows := make(map[notify.Channel]*SlidingWindow, len(notify.Channels()))
	for _, ch := range notify.Channels() {
		limit := cfg.limitFor(ch)
		if limit <= 0 {
			continue
		}
		sw, err := NewSlidingWindow(store, limit, cfg.Window)
		if err != nil {
			return nil, err
		}
		windows[ch] = sw
	}
	return windows, nil
}

// Allow reports whether one more send to the recipient over the channel is
// within limits and, if so, records it. A denied check is an expected
// outcome, not an error; the error return covers invalid input only.
func (l *ChannelLimiter) Allow(ctx context.Context, recipientID string, ch notify.Channel) (*Result, error) {
	if recipientID == "" {
		return nil, ErrKeyRequired
	}
	sw, ok := l.windows[ch]
	if !ok {
		return nil, ErrInvalidLimit
	}

	key := recipientID + ":" + ch.String()

	res, err := sw.Allow(ctx, key)
	if err != nil {
		return l.degrade(ctx, key, ch, err)
	}
	return res, nil
}

// Reset clears the window for a (recipient, channel) pair in both stores.
func (l *ChannelLimiter) Reset(ctx context.Context, recipientID string, ch notify.Channel) error {
	key := recipientID + ":" + ch.String()
	if err := l.fallback.Delete(ctx, key); err != nil {
		return err
	}
	return l.store.Delete(ctx, key)
}

// degrade applies the fail-open policy after a shared store failure.
func (l *ChannelLimiter) degrade(ctx context.Context, key string, ch notify.Channel, cause error) (*Result, error) {
	failOpen := l.config.FailOpen
	if criticalChannel(ch) && !l.config.FailOpenCriticalChannels {
		failOpen = false
	}

	l.logger.LogAttrs(ctx, slog.LevelWarn, "Rate limit store unavailable, degrading to in-process fallback",
		slog.String("channel", ch.String()),
		slog.Bool("fail_open", failOpen),
		logger.Error(cause),
	)

	limit := l.config.limitFor(ch)
	if !failOpen {
		return &Result{
			Allowed: false,
			Limit:   limit,
			ResetAt: time.Now().Add(l.config.Window),
		}, nil
	}

	res, err := l.fallbackWindows[ch].Allow(ctx, key)
	if err != nil {
		// Fallback is in-memory and should never fail; allow rather than
		// block the dispatch path on rate limiting infrastructure.
		return &Result{Allowed: true, Limit: limit, ResetAt: time.Now().Add(l.config.Window)}, nil
	}
	return res, nil
}
