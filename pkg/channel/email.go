package channel

import (
	"context"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/email"
	"github.com/dmitrymomot/notifykit/pkg/notify"
)

const emailProviderTag = "postmark"

// EmailProvider delivers notifications through the email transport.
type EmailProvider struct {
	sender  email.EmailSender
	timeout time.Duration
}

// NewEmailProvider creates an email channel provider. A zero timeout
// defaults to 10s; the timeout bounds every send so a slow email API
// cannot stall the dispatcher.
func NewEmailProvider(sender email.EmailSender, timeout time.Duration) *EmailProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &EmailProvider{sender: sender, timeout: timeout}
}

func (p *EmailProvider) Channel() notify.Channel {
	return notify.ChannelEmail
}

func (p *EmailProvider) Send(ctx context.Context, req SendRequest) notify.DeliveryResult {
	addr, ok := req.Recipient.AddressFor(notify.ChannelEmail)
	if !ok {
		return notify.Failed(notify.ChannelEmail, emailProviderTag, "no email address provided")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   addr,
		Subject:  req.Template.Title,
		BodyHTML: req.Template.Body,
		Tag:      req.Type,
	})
	if err != nil {
		return notify.Failed(notify.ChannelEmail, emailProviderTag, err.Error())
	}

	return notify.Sent(notify.ChannelEmail, emailProviderTag)
}
