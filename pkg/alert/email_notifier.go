package alert

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/email"
)

// EmailNotifier delivers alert events to a fixed list of recipients,
// typically an on-call distribution address.
type EmailNotifier struct {
	name       string
	sender     email.EmailSender
	recipients []string
}

// NewEmailNotifier creates a notifier sending through the given mailer.
func NewEmailNotifier(name string, sender email.EmailSender, recipients ...string) *EmailNotifier {
	return &EmailNotifier{
		name:       name,
		sender:     sender,
		recipients: recipients,
	}
}

// Name implements Notifier.
func (n *EmailNotifier) Name() string { return n.name }

// Notify implements Notifier. Delivery to each recipient is attempted
// independently; the returned error joins the failures.
func (n *EmailNotifier) Notify(ctx context.Context, a Alert, event Event) error {
	params := email.SendEmailParams{
		Subject:  emailSubject(a, event),
		BodyHTML: emailBody(a, event),
		Tag:      "alert-" + string(event),
	}

	var errs []error
	for _, rcpt := range n.recipients {
		params.SendTo = rcpt
		if err := n.sender.SendEmail(ctx, params); err != nil {
			errs = append(errs, fmt.Errorf("send to %s: %w", rcpt, err))
		}
	}
	return errors.Join(errs...)
}

func emailSubject(a Alert, event Event) string {
	prefix := strings.ToUpper(string(a.Severity))
	switch event {
	case EventEscalated:
		return fmt.Sprintf("[%s][ESCALATED] %s", prefix, a.Title)
	case EventResolved:
		return fmt.Sprintf("[%s][RESOLVED] %s", prefix, a.Title)
	default:
		return fmt.Sprintf("[%s] %s", prefix, a.Title)
	}
}

func emailBody(a Alert, event Event) string {
	var b strings.Builder
	b.WriteString("<h2>" + html.EscapeString(a.Title) + "</h2>")
	if a.Message != "" {
		b.WriteString("<p>" + html.EscapeString(a.Message) + "</p>")
	}
	b.WriteString("<ul>")
	row := func(label, value string) {
		if value != "" {
			b.WriteString("<li><strong>" + label + ":</strong> " + html.EscapeString(value) + "</li>")
		}
	}
	row("Event", string(event))
	row("Severity", string(a.Severity))
	row("Category", a.Category)
	row("Source", a.Source)
	row("Correlation ID", a.CorrelationID)
	row("Occurrences", fmt.Sprintf("%d", a.Count))
	row("First seen", a.FirstSeen.Format("2006-01-02 15:04:05 MST"))
	if a.Resolved {
		row("Resolved by", a.ResolvedBy)
		row("Time to resolution", a.ResolutionLatency.Round(time.Second).String())
	}
	b.WriteString("</ul>")
	if len(a.Metadata) > 0 {
		b.WriteString("<h3>Details</h3><ul>")
		for k, v := range a.Metadata {
			row(k, v)
		}
		b.WriteString("</ul>")
	}
	return b.String()
}
