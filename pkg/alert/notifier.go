package alert

import (
	"context"
	"time"
)

// Event is what happened to an alert to warrant a notification.
type Event string

const (
	EventCreated   Event = "created"
	EventEscalated Event = "escalated"
	EventResolved  Event = "resolved"
)

// Notifier pushes alert events to one destination (chat webhook, pager,
// email). Failures are logged by the manager and never propagate to the
// caller that raised the alert.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, a Alert, event Event) error
}

// RouteConfig filters and throttles what one notifier receives.
type RouteConfig struct {
	// MinSeverity drops alerts below this severity. Zero value (empty)
	// means everything.
	MinSeverity Severity
	// Categories limits the route to the listed categories. Empty means all.
	Categories []string
	// Cooldown is the minimum gap between notifications for one
	// fingerprint on this route. Defaults to 5m.
	Cooldown time.Duration
	// MaxPerHour caps notifications per fingerprint per hour on this
	// route. Defaults to 10.
	MaxPerHour int
	// Escalations opts the route into escalation events, which address a
	// broader audience than regular alert traffic.
	Escalations bool
}

func (c RouteConfig) normalize() RouteConfig {
	if c.MinSeverity == "" {
		c.MinSeverity = SeverityInfo
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 5 * time.Minute
	}
	if c.MaxPerHour <= 0 {
		c.MaxPerHour = 10
	}
	return c
}

// sendWindow is the per-(fingerprint, route) rate limit bookkeeping.
type sendWindow struct {
	lastSent  time.Time
	hourStart time.Time
	sent      int
}

// route binds a notifier to its filter and spam-control state. State is
// guarded by the manager mutex.
type route struct {
	notifier Notifier
	config   RouteConfig
	windows  map[string]*sendWindow
}

func newRoute(n Notifier, cfg RouteConfig) *route {
	return &route{
		notifier: n,
		config:   cfg.normalize(),
		windows:  make(map[string]*sendWindow),
	}
}

// matches reports whether the route wants this alert at all.
func (r *route) matches(a Alert, event Event) bool {
	if event == EventEscalated && !r.config.Escalations {
		return false
	}
	if !a.Severity.AtLeast(r.config.MinSeverity) {
		return false
	}
	if len(r.config.Categories) > 0 {
		found := false
		for _, c := range r.config.Categories {
			if c == a.Category {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// allow applies cooldown and hourly caps for one fingerprint and records
// the send when permitted. Escalation and resolution events bypass the
// throttle: both fire at most once per alert by construction.
func (r *route) allow(fingerprint string, event Event, now time.Time) bool {
	if event != EventCreated {
		return true
	}

	w, ok := r.windows[fingerprint]
	if !ok {
		w = &sendWindow{hourStart: now}
		r.windows[fingerprint] = w
	}

	if !w.lastSent.IsZero() && now.Sub(w.lastSent) < r.config.Cooldown {
		return false
	}
	if now.Sub(w.hourStart) >= time.Hour {
		w.hourStart = now
		w.sent = 0
	}
	if w.sent >= r.config.MaxPerHour {
		return false
	}

	w.lastSent = now
	w.sent++
	return true
}
