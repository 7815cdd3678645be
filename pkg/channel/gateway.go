package channel

import (
	"context"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/notify"
	"github.com/dmitrymomot/notifykit/pkg/webhook"
)

// GatewayConfig configures an HTTP gateway-backed provider (SMS, push,
// phone call). The gateway receives a JSON POST per delivery attempt and
// is expected to answer 2xx on acceptance.
type GatewayConfig struct {
	URL     string        `env:"URL,required"`
	APIKey  string        `env:"API_KEY"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

// gateway wraps the webhook sender with provider-side conventions:
// a single attempt per call (the dispatcher owns retries), a bounded
// timeout, and API key auth when configured.
type gateway struct {
	sender *webhook.Sender
	config GatewayConfig
}

func newGateway(sender *webhook.Sender, cfg GatewayConfig) gateway {
	if sender == nil {
		sender = webhook.NewSender()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return gateway{sender: sender, config: cfg}
}

func (g gateway) post(ctx context.Context, payload any) error {
	opts := []webhook.SendOption{
		webhook.WithTimeout(g.config.Timeout),
		webhook.WithMaxRetries(0),
	}
	if g.config.APIKey != "" {
		opts = append(opts, webhook.WithHeader("Authorization", "Bearer "+g.config.APIKey))
	}
	return g.sender.Send(ctx, g.config.URL, payload, opts...)
}

// gatewayPayload is the request body posted to SMS/push/call gateways.
type gatewayPayload struct {
	NotificationID string         `json:"notification_id"`
	Type           string         `json:"type"`
	Priority       string         `json:"priority"`
	To             string         `json:"to"`
	Title          string         `json:"title,omitempty"`
	Body           string         `json:"body"`
	ActionURL      string         `json:"action_url,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
}

func buildPayload(req SendRequest, to string) gatewayPayload {
	return gatewayPayload{
		NotificationID: req.NotificationID,
		Type:           req.Type,
		Priority:       req.Priority.String(),
		To:             to,
		Title:          req.Template.Title,
		Body:           req.Template.Body,
		ActionURL:      req.Template.ActionURL,
		Data:           req.Template.Data,
	}
}

// SMSProvider delivers notifications through an HTTP SMS gateway.
type SMSProvider struct {
	gateway gateway
}

const smsProviderTag = "sms-gateway"

// NewSMSProvider creates an SMS channel provider. Pass a shared
// webhook.Sender to reuse its connection pool; nil creates a default one.
func NewSMSProvider(sender *webhook.Sender, cfg GatewayConfig) *SMSProvider {
	return &SMSProvider{gateway: newGateway(sender, cfg)}
}

func (p *SMSProvider) Channel() notify.Channel {
	return notify.ChannelSMS
}

func (p *SMSProvider) Send(ctx context.Context, req SendRequest) notify.DeliveryResult {
	to, ok := req.Recipient.AddressFor(notify.ChannelSMS)
	if !ok {
		return notify.Failed(notify.ChannelSMS, smsProviderTag, "no phone number provided")
	}

	if err := p.gateway.post(ctx, buildPayload(req, to)); err != nil {
		return notify.Failed(notify.ChannelSMS, smsProviderTag, err.Error())
	}
	return notify.Sent(notify.ChannelSMS, smsProviderTag)
}

// PushProvider delivers notifications through an HTTP push gateway.
type PushProvider struct {
	gateway gateway
}

const pushProviderTag = "push-gateway"

// NewPushProvider creates a push channel provider.
func NewPushProvider(sender *webhook.Sender, cfg GatewayConfig) *PushProvider {
	return &PushProvider{gateway: newGateway(sender, cfg)}
}

func (p *PushProvider) Channel() notify.Channel {
	return notify.ChannelPush
}

func (p *PushProvider) Send(ctx context.Context, req SendRequest) notify.DeliveryResult {
	token, ok := req.Recipient.AddressFor(notify.ChannelPush)
	if !ok {
		return notify.Failed(notify.ChannelPush, pushProviderTag, "no device token provided")
	}

	if err := p.gateway.post(ctx, buildPayload(req, token)); err != nil {
		return notify.Failed(notify.ChannelPush, pushProviderTag, err.Error())
	}
	return notify.Sent(notify.ChannelPush, pushProviderTag)
}

// PhoneCallProvider places automated calls through an HTTP call gateway.
// Calls are reserved for critical notifications: any request below
// PriorityCritical is rejected here, at the provider, so no upstream bug
// can place a non-critical call.
type PhoneCallProvider struct {
	gateway gateway
}

const phoneCallProviderTag = "call-gateway"

// NewPhoneCallProvider creates a phone call channel provider.
func NewPhoneCallProvider(sender *webhook.Sender, cfg GatewayConfig) *PhoneCallProvider {
	return &PhoneCallProvider{gateway: newGateway(sender, cfg)}
}

func (p *PhoneCallProvider) Channel() notify.Channel {
	return notify.ChannelPhoneCall
}

func (p *PhoneCallProvider) Send(ctx context.Context, req SendRequest) notify.DeliveryResult {
	if req.Priority != notify.PriorityCritical {
		return notify.Failed(notify.ChannelPhoneCall, phoneCallProviderTag, "phone call requires critical priority")
	}

	to, ok := req.Recipient.AddressFor(notify.ChannelPhoneCall)
	if !ok {
		return notify.Failed(notify.ChannelPhoneCall, phoneCallProviderTag, "no phone number provided")
	}

	if err := p.gateway.post(ctx, buildPayload(req, to)); err != nil {
		return notify.Failed(notify.ChannelPhoneCall, phoneCallProviderTag, err.Error())
	}
	return notify.Sent(notify.ChannelPhoneCall, phoneCallProviderTag)
}
