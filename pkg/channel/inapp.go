package channel

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/notify"
)

const inAppProviderTag = "inbox"

// InboxMessage is a notification stored in a recipient's in-app inbox,
// read later through whatever UI the application exposes.
type InboxMessage struct {
	NotificationID string          `json:"notification_id"`
	Type           string          `json:"type"`
	Priority       notify.Priority `json:"priority"`
	Template       notify.Template `json:"template"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Inbox persists in-app notifications per recipient.
type Inbox interface {
	// Append stores a message in the recipient's inbox.
	Append(ctx context.Context, recipientID string, msg InboxMessage) error
}

// InAppProvider delivers notifications into a recipient's in-app inbox.
// Delivery is considered successful once the message is stored; reading
// it is the application's concern.
type InAppProvider struct {
	inbox Inbox
}

// NewInAppProvider creates an in-app channel provider.
func NewInAppProvider(inbox Inbox) *InAppProvider {
	return &InAppProvider{inbox: inbox}
}

func (p *InAppProvider) Channel() notify.Channel {
	return notify.ChannelInApp
}

func (p *InAppProvider) Send(ctx context.Context, req SendRequest) notify.DeliveryResult {
	err := p.inbox.Append(ctx, req.Recipient.ID, InboxMessage{
		NotificationID: req.NotificationID,
		Type:           req.Type,
		Priority:       req.Priority,
		Template:       req.Template,
		CreatedAt:      time.Now(),
	})
	if err != nil {
		return notify.Failed(notify.ChannelInApp, inAppProviderTag, err.Error())
	}
	return notify.Sent(notify.ChannelInApp, inAppProviderTag)
}

// MemoryInbox is an in-memory Inbox bounded per recipient. When a
// recipient's inbox is full the oldest message is dropped, matching the
// engine's general bias of bounding memory over retaining history.
// Safe for concurrent use.
type MemoryInbox struct {
	mu       sync.Mutex
	messages map[string][]InboxMessage
	capacity int
}

// NewMemoryInbox creates an in-memory inbox keeping at most capacity
// messages per recipient (default 200).
func NewMemoryInbox(capacity int) *MemoryInbox {
	if capacity <= 0 {
		capacity = 200
	}
	return &MemoryInbox{
		messages: make(map[string][]InboxMessage),
		capacity: capacity,
	}
}

// Append stores a message, evicting the oldest when the inbox is full.
func (s *MemoryInbox) Append(ctx context.Context, recipientID string, msg InboxMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messages[recipientID]
	if len(msgs) >= s.capacity {
		msgs = msgs[1:]
	}
	s.messages[recipientID] = append(msgs, msg)
	return nil
}

// List returns a copy of the recipient's inbox in insertion order.
func (s *MemoryInbox) List(ctx context.Context, recipientID string) ([]InboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messages[recipientID]
	out := make([]InboxMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}
