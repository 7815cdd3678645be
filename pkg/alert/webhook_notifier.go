package alert

import (
	"context"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/webhook"
)

// webhookPayload is the JSON body posted to the configured endpoint.
type webhookPayload struct {
	Event         string            `json:"event"`
	AlertID       string            `json:"alert_id"`
	Fingerprint   string            `json:"fingerprint"`
	Severity      string            `json:"severity"`
	Category      string            `json:"category"`
	Title         string            `json:"title"`
	Message       string            `json:"message,omitempty"`
	Source        string            `json:"source,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Count         int               `json:"count"`
	FirstSeen     time.Time         `json:"first_seen"`
	LastSeen      time.Time         `json:"last_seen"`
	Escalated     bool              `json:"escalated"`
	Resolved      bool              `json:"resolved"`
	ResolvedBy    string            `json:"resolved_by,omitempty"`
	ResolvedAt    *time.Time        `json:"resolved_at,omitempty"`
}

// WebhookNotifier posts alert events to an HTTP endpoint with HMAC
// signing and a circuit breaker shared across deliveries.
type WebhookNotifier struct {
	name    string
	url     string
	secret  string
	sender  *webhook.Sender
	breaker *webhook.CircuitBreaker
}

// NewWebhookNotifier creates a notifier delivering to the given URL.
// The secret, when non-empty, signs each payload so the receiver can
// verify authenticity.
func NewWebhookNotifier(name, url, secret string) *WebhookNotifier {
	return &WebhookNotifier{
		name:    name,
		url:     url,
		secret:  secret,
		sender:  webhook.NewSender(),
		breaker: webhook.NewCircuitBreaker(5, 2, 30*time.Second),
	}
}

// Name implements Notifier.
func (n *WebhookNotifier) Name() string { return n.name }

// Notify implements Notifier.
func (n *WebhookNotifier) Notify(ctx context.Context, a Alert, event Event) error {
	payload := webhookPayload{
		Event:         string(event),
		AlertID:       a.ID,
		Fingerprint:   a.Fingerprint,
		Severity:      string(a.Severity),
		Category:      a.Category,
		Title:         a.Title,
		Message:       a.Message,
		Source:        a.Source,
		CorrelationID: a.CorrelationID,
		Metadata:      a.Metadata,
		Count:         a.Count,
		FirstSeen:     a.FirstSeen,
		LastSeen:      a.LastSeen,
		Escalated:     a.Escalated,
		Resolved:      a.Resolved,
		ResolvedBy:    a.ResolvedBy,
		ResolvedAt:    a.ResolvedAt,
	}

	opts := []webhook.SendOption{
		webhook.WithCircuitBreaker(n.breaker),
		webhook.WithHeader("X-Alert-Event", string(event)),
	}
	if n.secret != "" {
		opts = append(opts, webhook.WithSignature(n.secret))
	}
	return n.sender.Send(ctx, n.url, payload, opts...)
}
