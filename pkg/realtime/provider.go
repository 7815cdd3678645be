package realtime

import (
	"context"

	"github.com/dmitrymomot/notifykit/pkg/channel"
	"github.com/dmitrymomot/notifykit/pkg/notify"
)

const providerTag = "websocket"

// ChannelProvider exposes the registry as a websocket delivery channel
// for the dispatcher. A send counts as delivered only when the message
// reached a live connection; otherwise it is queued for replay and the
// result is FAILED so the dispatcher can fall back. The registry's own
// durable fallback is disabled here because the dispatcher owns channel
// fallback.
type ChannelProvider struct {
	registry *Registry
}

// NewChannelProvider creates a websocket channel provider.
func NewChannelProvider(registry *Registry) *ChannelProvider {
	return &ChannelProvider{registry: registry}
}

func (p *ChannelProvider) Channel() notify.Channel {
	return notify.ChannelWebSocket
}

func (p *ChannelProvider) Send(ctx context.Context, req channel.SendRequest) notify.DeliveryResult {
	if req.Recipient.ID == "" {
		return notify.Failed(notify.ChannelWebSocket, providerTag, "no recipient ID provided")
	}

	data := map[string]any{
		"title": req.Template.Title,
		"body":  req.Template.Body,
	}
	if req.Template.ActionURL != "" {
		data["action_url"] = req.Template.ActionURL
	}
	for k, v := range req.Template.Data {
		data[k] = v
	}

	delivered := p.registry.publish(ctx, req.Recipient.ID, Message{
		ID:       req.NotificationID,
		Type:     req.Type,
		Priority: req.Priority,
		Data:     data,
	}, false)
	if !delivered {
		return notify.Failed(notify.ChannelWebSocket, providerTag, "recipient not connected")
	}

	return notify.Sent(notify.ChannelWebSocket, providerTag)
}
