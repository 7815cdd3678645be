package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/channel"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notify"
	"github.com/dmitrymomot/notifykit/pkg/ratelimit"
)

// AlertSink receives operational alerts raised by the dispatcher when
// delivery degrades badly enough to need human attention. Implementations
// must not block for long and must not fail the dispatch path.
type AlertSink interface {
	CriticalAlert(ctx context.Context, title, message string, metadata map[string]string)
}

// Dispatcher orchestrates notification delivery: per-channel sends in
// caller order, rate limiting, asynchronous retries for high-priority
// failures, result persistence and the all-channels-failed alert.
type Dispatcher struct {
	registry    *channel.Registry
	limiter     *ratelimit.ChannelLimiter
	storage     Storage
	alerts      AlertSink
	metrics     *Metrics
	logger      *slog.Logger
	sendTimeout time.Duration
	retryBudget time.Duration

	mu   sync.Mutex
	live map[string]*inflight
	wg   sync.WaitGroup
	done chan struct{}
}

// inflight tracks a record whose channels have not all settled. Access is
// guarded by the dispatcher mutex; the record inside is the single
// mutable copy shared between Send and retry goroutines.
type inflight struct {
	rec        *notify.Record
	superseded bool
	alerted    bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithStorage sets the record storage. Defaults to in-memory.
func WithStorage(storage Storage) Option {
	return func(d *Dispatcher) {
		if storage != nil {
			d.storage = storage
		}
	}
}

// WithRateLimiter sets the per-(recipient, channel) rate limiter.
// Without one, sends are never rate limited.
func WithRateLimiter(limiter *ratelimit.ChannelLimiter) Option {
	return func(d *Dispatcher) {
		d.limiter = limiter
	}
}

// WithAlertSink sets the sink for operational alerts.
func WithAlertSink(sink AlertSink) Option {
	return func(d *Dispatcher) {
		d.alerts = sink
	}
}

// WithLogger sets the logger for the Dispatcher.
func WithLogger(log *slog.Logger) Option {
	return func(d *Dispatcher) {
		if log != nil {
			d.logger = log
		}
	}
}

// WithSendTimeout bounds each provider send. Defaults to 15s.
func WithSendTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.sendTimeout = timeout
		}
	}
}

// WithRetryBudget bounds how long after creation a channel may keep
// retrying. A retry that would fire past the budget records EXPIRED
// instead. Defaults to 10m.
func WithRetryBudget(budget time.Duration) Option {
	return func(d *Dispatcher) {
		if budget > 0 {
			d.retryBudget = budget
		}
	}
}

// NewDispatcher creates a dispatcher over the given provider registry.
func NewDispatcher(registry *channel.Registry, opts ...Option) (*Dispatcher, error) {
	if registry == nil {
		return nil, ErrRegistryRequired
	}

	d := &Dispatcher{
		registry:    registry,
		storage:     NewMemoryStorage(),
		metrics:     NewMetrics(),
		logger:      slog.Default(),
		sendTimeout: 15 * time.Second,
		retryBudget: 10 * time.Minute,
		live:        make(map[string]*inflight),
		done:        make(chan struct{}),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d, nil
}

// Send dispatches one notification across the requested channels in
// order. The returned record holds one result per channel; channels that
// failed with retries scheduled are in RETRYING and settle asynchronously.
// The error return covers invalid requests and storage failures only.
// Delivery failures are results, not errors.
func (d *Dispatcher) Send(ctx context.Context, req notify.Request) (*notify.Record, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	select {
	case <-d.done:
		return nil, ErrDispatcherClosed
	default:
	}

	rec := &notify.Record{
		ID:        uuid.New().String(),
		Request:   req,
		Results:   make(map[notify.Channel]notify.DeliveryResult, len(req.Channels)),
		CreatedAt: time.Now(),
	}

	// Store before the first attempt so the record exists even if the
	// process dies mid-dispatch.
	if err := d.storage.Create(ctx, *rec); err != nil {
		return nil, fmt.Errorf("failed to store notification record: %w", err)
	}

	fl := &inflight{rec: rec}
	d.mu.Lock()
	d.live[rec.ID] = fl
	d.mu.Unlock()

	var retryChannels []notify.Channel
	for _, ch := range req.Channels {
		res, retryable := d.attempt(ctx, rec.ID, req, ch)

		if res.Status == notify.StatusFailed && retryable && req.Retry != nil && req.Priority.AtLeast(notify.PriorityHigh) {
			res.Status = notify.StatusRetrying
			retryChannels = append(retryChannels, ch)
		}

		d.mu.Lock()
		rec.Results[ch] = res
		d.mu.Unlock()
	}

	for _, ch := range retryChannels {
		d.wg.Add(1)
		go d.retryLoop(rec.ID, req, ch)
	}

	d.persist(ctx, rec.ID)
	d.settle(ctx, rec.ID)

	return d.snapshot(rec.ID), nil
}

// Supersede marks a live notification as no longer wanted. Pending
// retries for it record EXPIRED instead of firing. Returns false when the
// notification is unknown or already settled.
func (d *Dispatcher) Supersede(notificationID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	fl, ok := d.live[notificationID]
	if !ok {
		return false
	}
	fl.superseded = true
	return true
}

// Record retrieves a stored notification record by ID.
func (d *Dispatcher) Record(ctx context.Context, id string) (*notify.Record, error) {
	return d.storage.Get(ctx, id)
}

// History lists stored records for a recipient, newest first.
func (d *Dispatcher) History(ctx context.Context, recipientID string, opts ListOptions) ([]notify.Record, error) {
	return d.storage.List(ctx, recipientID, opts)
}

// Metrics returns a snapshot of per-channel delivery counters.
func (d *Dispatcher) Metrics() map[notify.Channel]ChannelMetrics {
	return d.metrics.Snapshot()
}

// Shutdown stops accepting new sends and waits for in-flight retry
// goroutines, bounded by the context. Pending retries record EXPIRED
// rather than firing after shutdown.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	select {
	case <-d.done:
	default:
		close(d.done)
	}
	d.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// attempt runs rate limiting, provider resolution and a bounded send for
// one channel. The bool return reports whether a failure is retryable:
// rate-limited and misconfigured channels never are.
func (d *Dispatcher) attempt(ctx context.Context, notificationID string, req notify.Request, ch notify.Channel) (notify.DeliveryResult, bool) {
	if d.limiter != nil {
		verdict, err := d.limiter.Allow(ctx, req.Recipient.ID, ch)
		if err != nil {
			// Limiter errors are setup bugs, not transient conditions.
			d.logger.LogAttrs(ctx, slog.LevelError, "Rate limiter rejected the check",
				logger.NotificationID(notificationID),
				logger.Channel(ch.String()),
				logger.Error(err),
			)
			return notify.Failed(ch, "", "rate limiter misconfigured: "+err.Error()), false
		}
		if !verdict.Allowed {
			return notify.Failed(ch, "", "rate limit exceeded"), false
		}
	}

	provider, ok := d.registry.Resolve(ch)
	if !ok {
		d.logger.LogAttrs(ctx, slog.LevelError, "No provider registered for requested channel",
			logger.NotificationID(notificationID),
			logger.Channel(ch.String()),
		)
		return notify.Failed(ch, "", "no provider registered"), false
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	start := time.Now()
	res := provider.Send(sendCtx, channel.SendRequest{
		NotificationID: notificationID,
		Type:           req.Type,
		Priority:       req.Priority,
		Recipient:      req.Recipient,
		Template:       req.Template,
	})
	d.metrics.Record(ch, res.Status, time.Since(start))

	return res, res.Status == notify.StatusFailed
}

// retryLoop re-attempts one failed channel with exponential backoff.
// Attempts for a single (notification, channel) pair are strictly
// ordered; the loop is the only writer for its channel's result.
func (d *Dispatcher) retryLoop(notificationID string, req notify.Request, ch notify.Channel) {
	defer d.wg.Done()

	cfg := notify.DefaultRetryConfig()
	if req.Retry != nil {
		cfg = req.Retry.Normalize()
	}

	deadline := d.retryDeadline(notificationID, req)
	ctx := context.Background()

	for retry := 1; retry < cfg.MaxAttempts; retry++ {
		delay := delayFor(cfg, retry)
		if time.Now().Add(delay).After(deadline) {
			d.record(ctx, notificationID, ch, expired(ch, "retry budget elapsed"))
			return
		}

		timer := time.NewTimer(delay)
		select {
		case <-d.done:
			timer.Stop()
			d.record(ctx, notificationID, ch, expired(ch, "dispatcher shut down"))
			return
		case <-timer.C:
		}

		if d.isSuperseded(notificationID) {
			d.record(ctx, notificationID, ch, expired(ch, "notification superseded"))
			return
		}

		res, retryable := d.attempt(ctx, notificationID, req, ch)
		d.logger.LogAttrs(ctx, slog.LevelInfo, "Notification retry attempt finished",
			logger.NotificationID(notificationID),
			logger.Channel(ch.String()),
			logger.Attempt(retry+1),
			slog.String("status", string(res.Status)),
		)

		last := retry == cfg.MaxAttempts-1
		if res.Status == notify.StatusFailed && retryable && !last {
			res.Status = notify.StatusRetrying
		}
		d.record(ctx, notificationID, ch, res)

		if res.Status != notify.StatusRetrying {
			return
		}
	}
}

// retryDeadline derives the wall-clock instant past which no further
// retry may fire. Scheduled notifications measure the budget from their
// schedule time, immediate ones from record creation.
func (d *Dispatcher) retryDeadline(notificationID string, req notify.Request) time.Time {
	base := time.Now()
	d.mu.Lock()
	if fl, ok := d.live[notificationID]; ok {
		base = fl.rec.CreatedAt
	}
	d.mu.Unlock()
	if req.ScheduleTime != nil && req.ScheduleTime.After(base) {
		base = *req.ScheduleTime
	}
	return base.Add(d.retryBudget)
}

func (d *Dispatcher) isSuperseded(notificationID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	fl, ok := d.live[notificationID]
	return ok && fl.superseded
}

// record stores a channel result, persists the record and settles it if
// every channel has now reached a terminal state.
func (d *Dispatcher) record(ctx context.Context, notificationID string, ch notify.Channel, res notify.DeliveryResult) {
	d.mu.Lock()
	if fl, ok := d.live[notificationID]; ok {
		fl.rec.Results[ch] = res
	}
	d.mu.Unlock()

	d.persist(ctx, notificationID)
	d.settle(ctx, notificationID)
}

// persist pushes the current record snapshot to storage. Storage failures
// after creation are logged, not propagated: delivery already happened
// and must not be reported as failed because bookkeeping lagged.
func (d *Dispatcher) persist(ctx context.Context, notificationID string) {
	snap := d.snapshot(notificationID)
	if snap == nil {
		return
	}
	if err := d.storage.Update(ctx, *snap); err != nil {
		d.logger.LogAttrs(ctx, slog.LevelWarn, "Failed to persist notification record",
			logger.NotificationID(notificationID),
			logger.Error(err),
		)
	}
}

// settle checks whether every channel reached a terminal state and, when
// it has, raises the all-channels-failed alert at most once and drops the
// record from the live set.
func (d *Dispatcher) settle(ctx context.Context, notificationID string) {
	d.mu.Lock()
	fl, ok := d.live[notificationID]
	if !ok || !fl.rec.Terminal() {
		d.mu.Unlock()
		return
	}

	raiseAlert := d.alerts != nil && !fl.alerted &&
		fl.rec.AllFailed() && fl.rec.Request.Priority.AtLeast(notify.PriorityHigh)
	if raiseAlert {
		fl.alerted = true
	}
	snap := snapshotRecord(fl.rec)
	delete(d.live, notificationID)
	d.mu.Unlock()

	if raiseAlert {
		metadata := snap.ChannelErrors()
		metadata["notification_id"] = snap.ID
		metadata["notification_type"] = snap.Request.Type
		metadata["recipient_id"] = snap.Request.Recipient.ID
		d.alerts.CriticalAlert(ctx,
			"All notification channels failed",
			fmt.Sprintf("notification %s (%s) could not be delivered over any of %d channel(s)",
				snap.ID, snap.Request.Type, len(snap.Request.Channels)),
			metadata,
		)
	}
}

// snapshot returns a copy of a live record, or the stored record once the
// notification has settled.
func (d *Dispatcher) snapshot(notificationID string) *notify.Record {
	d.mu.Lock()
	if fl, ok := d.live[notificationID]; ok {
		snap := snapshotRecord(fl.rec)
		d.mu.Unlock()
		return &snap
	}
	d.mu.Unlock()

	rec, err := d.storage.Get(context.Background(), notificationID)
	if err != nil {
		return nil
	}
	return rec
}

func snapshotRecord(rec *notify.Record) notify.Record {
	snap := *rec
	snap.Results = make(map[notify.Channel]notify.DeliveryResult, len(rec.Results))
	for ch, res := range rec.Results {
		snap.Results[ch] = res
	}
	return snap
}

func expired(ch notify.Channel, reason string) notify.DeliveryResult {
	return notify.DeliveryResult{
		Channel:   ch,
		Status:    notify.StatusExpired,
		Error:     reason,
		Timestamp: time.Now(),
	}
}
