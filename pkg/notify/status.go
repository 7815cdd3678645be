package notify

// Status represents the delivery state of a single (notification, channel) attempt.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
	StatusRetrying  Status = "retrying"
	StatusExpired   Status = "expired"
)

// Terminal reports whether the status is a final state. A retrying attempt
// is not terminal: the scheduled retry will move it to sent, failed or expired.
func (s Status) Terminal() bool {
	switch s {
	case StatusSent, StatusDelivered, StatusFailed, StatusExpired:
		return true
	default:
		return false
	}
}
