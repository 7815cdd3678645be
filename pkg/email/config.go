package email

// Config holds email delivery configuration.
// The Postmark tokens are optional to support development environments where
// real sending is disabled and DevSender is wired instead. SenderEmail and
// SupportEmail are required: they establish the sender identity and reply-to
// behavior for every outbound message the engine produces.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL,required"`
	SupportEmail         string `env:"SUPPORT_EMAIL,required"`
}
