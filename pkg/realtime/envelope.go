package realtime

import (
	"encoding/json"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/notify"
)

// envelopeKind tags every frame sent to clients so they can route on a
// stable discriminator.
const envelopeKind = "realtime_notification"

// Message is a unit of real-time delivery. Topic is optional: when set,
// only connections subscribed to that topic receive the message.
type Message struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Priority notify.Priority `json:"priority"`
	Topic    string          `json:"topic,omitempty"`
	Data     map[string]any  `json:"data,omitempty"`
}

// envelope is the wire frame written to client transports.
type envelope struct {
	Kind             string         `json:"type"`
	MessageID        string         `json:"message_id"`
	NotificationType string         `json:"notification_type"`
	Priority         string         `json:"priority"`
	Data             map[string]any `json:"data,omitempty"`
	Timestamp        string         `json:"timestamp"`
}

// encode renders the wire frame. The timestamp is fixed at encode time so
// a queued message replayed later still carries its original publish time.
func (m Message) encode(now time.Time) ([]byte, error) {
	return json.Marshal(envelope{
		Kind:             envelopeKind,
		MessageID:        m.ID,
		NotificationType: m.Type,
		Priority:         m.Priority.String(),
		Data:             m.Data,
		Timestamp:        now.UTC().Format(time.RFC3339),
	})
}
