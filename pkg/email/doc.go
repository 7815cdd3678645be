// Package email provides the email transport used by the notification
// engine: a small EmailSender interface, a Postmark-backed implementation
// for production and a file-based DevSender for local development.
//
// The email channel provider (pkg/channel) and the alert email notifier
// (pkg/alert) both send through this package; neither knows which
// implementation is wired.
//
// # Usage
//
//	var cfg email.Config
//	config.MustLoad(&cfg)
//
//	sender, err := email.NewPostmarkClient(cfg)
//	if err != nil {
//	    // invalid configuration, refuse to start
//	}
//
//	err = sender.SendEmail(ctx, email.SendEmailParams{
//	    SendTo:   "user@example.com",
//	    Subject:  "Payment failed",
//	    BodyHTML: "<p>Your card was declined.</p>",
//	    Tag:      "payment_failed",
//	})
//
// In development:
//
//	sender := email.NewDevSender("./tmp/emails")
package email
