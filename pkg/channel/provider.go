package channel

import (
	"context"

	"github.com/dmitrymomot/notifykit/pkg/notify"
)

// SendRequest carries everything a provider needs for one delivery attempt.
type SendRequest struct {
	NotificationID string
	Type           string
	Priority       notify.Priority
	Recipient      notify.Recipient
	Template       notify.Template
}

// Provider is a single delivery channel. Send performs exactly one external
// delivery attempt and never returns an error: transport failures, missing
// addresses and policy rejections all come back as FAILED results carrying
// a short diagnostic. Implementations must bound their own execution time
// (context deadline) so a stuck provider cannot stall the dispatcher.
type Provider interface {
	// Channel returns the channel this provider serves.
	Channel() notify.Channel

	// Send performs one delivery attempt for the request.
	Send(ctx context.Context, req SendRequest) notify.DeliveryResult
}
