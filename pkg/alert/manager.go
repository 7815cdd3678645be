package alert

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// Config holds alert manager settings.
type Config struct {
	HistoryLimit       int           `env:"ALERT_HISTORY_LIMIT" envDefault:"500"`
	EscalationCritical time.Duration `env:"ALERT_ESCALATE_CRITICAL" envDefault:"5m"`
	EscalationError    time.Duration `env:"ALERT_ESCALATE_ERROR" envDefault:"15m"`
	EscalationWarning  time.Duration `env:"ALERT_ESCALATE_WARNING" envDefault:"60m"`
}

// DefaultConfig returns the settings used when no configuration is loaded.
func DefaultConfig() Config {
	return Config{
		HistoryLimit:       500,
		EscalationCritical: 5 * time.Minute,
		EscalationError:    15 * time.Minute,
		EscalationWarning:  60 * time.Minute,
	}
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = def.HistoryLimit
	}
	if c.EscalationCritical <= 0 {
		c.EscalationCritical = def.EscalationCritical
	}
	if c.EscalationError <= 0 {
		c.EscalationError = def.EscalationError
	}
	if c.EscalationWarning <= 0 {
		c.EscalationWarning = def.EscalationWarning
	}
	return c
}

// escalationThreshold returns how long an alert of the given severity may
// stay unresolved before escalating. Zero means never.
func (c Config) escalationThreshold(s Severity) time.Duration {
	switch s {
	case SeverityCritical:
		return c.EscalationCritical
	case SeverityError:
		return c.EscalationError
	case SeverityWarning:
		return c.EscalationWarning
	default:
		return 0
	}
}

// CreateParams describes a new alert occurrence.
type CreateParams struct {
	Severity      Severity
	Category      string
	Title         string
	Message       string
	Source        string
	CorrelationID string
	Metadata      map[string]string
}

func (p CreateParams) validate() error {
	if !p.Severity.Valid() {
		return ErrInvalidSeverity
	}
	if p.Category == "" {
		return ErrCategoryRequired
	}
	if p.Title == "" {
		return ErrTitleRequired
	}
	return nil
}

// Filter narrows GetActiveAlerts results.
type Filter struct {
	Category    string
	MinSeverity Severity
}

// Manager deduplicates alerts by fingerprint, fans them out to configured
// notifiers with per-route spam control, and escalates alerts that stay
// unresolved past their severity threshold.
type Manager struct {
	config Config
	logger *slog.Logger

	mu      sync.Mutex
	routes  []*route
	active  map[string]*Alert // fingerprint -> unresolved alert
	history []Alert           // creation-ordered ring, newest last
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger for the Manager.
func WithLogger(log *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if log != nil {
			m.logger = log
		}
	}
}

// WithNotifier registers a notifier with its routing filter.
func WithNotifier(n Notifier, cfg RouteConfig) ManagerOption {
	return func(m *Manager) {
		if n != nil {
			m.routes = append(m.routes, newRoute(n, cfg))
		}
	}
}

// NewManager creates an alert manager.
func NewManager(cfg Config, opts ...ManagerOption) *Manager {
	m := &Manager{
		config: cfg.normalize(),
		logger: slog.Default(),
		active: make(map[string]*Alert),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateAlert records one occurrence of an operational condition. A
// repeat of an unresolved alert increments its count and refreshes
// last-seen instead of creating a duplicate; either way the occurrence is
// fanned out to matching notifiers, subject to their spam control.
func (m *Manager) CreateAlert(ctx context.Context, params CreateParams) (*Alert, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	fp := Fingerprint(params.Category, params.Title, params.Source)

	m.mu.Lock()
	a, deduped := m.active[fp]
	if deduped {
		a.Count++
		a.LastSeen = now
		// A worsening condition raises the stored severity so routing and
		// escalation thresholds follow the worst occurrence. Never lowered.
		if params.Severity.rank() > a.Severity.rank() {
			a.Severity = params.Severity
		}
		if len(params.Metadata) > 0 {
			if a.Metadata == nil {
				a.Metadata = make(map[string]string, len(params.Metadata))
			}
			for k, v := range params.Metadata {
				a.Metadata[k] = v
			}
		}
		m.updateHistoryLocked(snapshotAlert(a))
	} else {
		a = &Alert{
			ID:            uuid.New().String(),
			Fingerprint:   fp,
			Severity:      params.Severity,
			Category:      params.Category,
			Title:         params.Title,
			Message:       params.Message,
			Source:        params.Source,
			CorrelationID: params.CorrelationID,
			Metadata:      cloneMetadata(params.Metadata),
			Count:         1,
			FirstSeen:     now,
			LastSeen:      now,
		}
		m.active[fp] = a
		m.appendHistoryLocked(snapshotAlert(a))
	}
	snapshot := snapshotAlert(a)
	targets := m.collectTargetsLocked(snapshot, EventCreated, now)
	m.mu.Unlock()

	m.logger.LogAttrs(ctx, slog.LevelInfo, "Alert recorded",
		logger.Fingerprint(fp),
		slog.String("severity", string(snapshot.Severity)),
		slog.String("category", snapshot.Category),
		slog.Bool("deduplicated", deduped),
		slog.Int("count", snapshot.Count),
	)

	m.notify(ctx, targets, snapshot, EventCreated)
	return &snapshot, nil
}

// ResolveAlert closes an unresolved alert. Critical resolutions are
// announced to matching notifiers so on-call staff sees the all-clear.
// Returns false when no unresolved alert has that fingerprint.
func (m *Manager) ResolveAlert(ctx context.Context, fingerprint, resolvedBy string) bool {
	now := time.Now()

	m.mu.Lock()
	a, ok := m.active[fingerprint]
	if !ok {
		m.mu.Unlock()
		return false
	}
	delete(m.active, fingerprint)

	a.Resolved = true
	a.ResolvedAt = &now
	a.ResolvedBy = resolvedBy
	a.ResolutionLatency = now.Sub(a.FirstSeen)
	m.updateHistoryLocked(snapshotAlert(a))

	snapshot := snapshotAlert(a)
	var targets []Notifier
	if a.Severity == SeverityCritical {
		targets = m.collectTargetsLocked(snapshot, EventResolved, now)
	}
	m.mu.Unlock()

	m.logger.LogAttrs(ctx, slog.LevelInfo, "Alert resolved",
		logger.Fingerprint(fingerprint),
		slog.String("resolved_by", resolvedBy),
		logger.Duration(snapshot.ResolutionLatency),
	)

	m.notify(ctx, targets, snapshot, EventResolved)
	return true
}

// GetActiveAlerts returns unresolved alerts matching the filter, oldest
// first.
func (m *Manager) GetActiveAlerts(filter Filter) []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Alert, 0, len(m.active))
	for _, a := range m.active {
		if filter.Category != "" && a.Category != filter.Category {
			continue
		}
		if filter.MinSeverity != "" && !a.Severity.AtLeast(filter.MinSeverity) {
			continue
		}
		out = append(out, snapshotAlert(a))
	}
	sortByFirstSeen(out)
	return out
}

// History returns the bounded creation-ordered alert history, newest last.
func (m *Manager) History() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Alert(nil), m.history...)
}

// CheckEscalations promotes unresolved alerts past their severity
// threshold. The transition is one-way and fires exactly one escalation
// event per alert. Intended to run periodically under a worker runner.
func (m *Manager) CheckEscalations(ctx context.Context) error {
	now := time.Now()

	type escalation struct {
		snapshot Alert
		targets  []Notifier
	}

	m.mu.Lock()
	var due []escalation
	for _, a := range m.active {
		threshold := m.config.escalationThreshold(a.Severity)
		if a.Escalated || threshold <= 0 || a.Age(now) <= threshold {
			continue
		}
		a.Escalated = true
		m.updateHistoryLocked(snapshotAlert(a))
		snapshot := snapshotAlert(a)
		due = append(due, escalation{
			snapshot: snapshot,
			targets:  m.collectTargetsLocked(snapshot, EventEscalated, now),
		})
	}
	m.mu.Unlock()

	for _, e := range due {
		m.logger.LogAttrs(ctx, slog.LevelWarn, "Alert escalated",
			logger.Fingerprint(e.snapshot.Fingerprint),
			slog.String("severity", string(e.snapshot.Severity)),
			logger.Duration(e.snapshot.Age(now)),
		)
		m.notify(ctx, e.targets, e.snapshot, EventEscalated)
	}
	return nil
}

// CriticalAlert adapts the manager to the dispatcher's alert sink: a
// fire-and-forget critical alert where creation problems are logged, not
// returned.
func (m *Manager) CriticalAlert(ctx context.Context, title, message string, metadata map[string]string) {
	_, err := m.CreateAlert(ctx, CreateParams{
		Severity: SeverityCritical,
		Category: "delivery",
		Title:    title,
		Message:  message,
		Source:   "dispatcher",
		Metadata: metadata,
	})
	if err != nil {
		m.logger.LogAttrs(ctx, slog.LevelError, "Failed to record critical alert",
			slog.String("title", title),
			logger.Error(err),
		)
	}
}

// collectTargetsLocked applies route filters and spam control, returning
// the notifiers that should receive this event. Called under the mutex;
// the actual notifier calls happen outside it.
func (m *Manager) collectTargetsLocked(a Alert, event Event, now time.Time) []Notifier {
	var targets []Notifier
	for _, r := range m.routes {
		if !r.matches(a, event) {
			continue
		}
		if !r.allow(a.Fingerprint, event, now) {
			continue
		}
		targets = append(targets, r.notifier)
	}
	return targets
}

// notify fans an event out sequentially. Notifier failures are logged
// and swallowed: alerting is best-effort infrastructure, never a hard
// dependency of the caller's success path.
func (m *Manager) notify(ctx context.Context, targets []Notifier, a Alert, event Event) {
	for _, n := range targets {
		if err := n.Notify(ctx, a, event); err != nil {
			m.logger.LogAttrs(ctx, slog.LevelWarn, "Alert notifier failed",
				slog.String("notifier", n.Name()),
				logger.Fingerprint(a.Fingerprint),
				logger.Event(string(event)),
				logger.Error(err),
			)
		}
	}
}

func (m *Manager) appendHistoryLocked(a Alert) {
	if len(m.history) >= m.config.HistoryLimit {
		m.history = m.history[1:]
	}
	m.history = append(m.history, a)
}

// updateHistoryLocked refreshes the history snapshot of an alert that
// changed state. The entry may already have rotated out of the ring.
func (m *Manager) updateHistoryLocked(a Alert) {
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].ID == a.ID {
			m.history[i] = a
			return
		}
	}
}

// snapshotAlert copies the alert with its own metadata map, safe to hand
// to notifiers and callers after the mutex is released.
func snapshotAlert(a *Alert) Alert {
	out := *a
	out.Metadata = cloneMetadata(a.Metadata)
	return out
}

func cloneMetadata(md map[string]string) map[string]string {
	if len(md) == 0 {
		return nil
	}
	out := make(map[string]string, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}

func sortByFirstSeen(alerts []Alert) {
	for i := 1; i < len(alerts); i++ {
		for j := i; j > 0 && alerts[j].FirstSeen.Before(alerts[j-1].FirstSeen); j-- {
			alerts[j], alerts[j-1] = alerts[j-1], alerts[j]
		}
	}
}
