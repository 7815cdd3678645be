package notify

import (
	"time"
)

// DeliveryResult is the outcome of one (notification, channel) attempt.
type DeliveryResult struct {
	Channel     Channel   `json:"channel"`
	Status      Status    `json:"status"`
	Error       string    `json:"error,omitempty"`
	ProviderTag string    `json:"provider_tag,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Failed returns a FAILED result for the given channel with a short
// diagnostic. Providers use this instead of returning errors.
func Failed(ch Channel, tag, reason string) DeliveryResult {
	return DeliveryResult{
		Channel:     ch,
		Status:      StatusFailed,
		Error:       reason,
		ProviderTag: tag,
		Timestamp:   time.Now(),
	}
}

// Sent returns a SENT result for the given channel.
func Sent(ch Channel, tag string) DeliveryResult {
	return DeliveryResult{
		Channel:     ch,
		Status:      StatusSent,
		ProviderTag: tag,
		Timestamp:   time.Now(),
	}
}

// Record is the audit trail of one dispatched notification: a snapshot of
// the request plus the latest result per channel. It is handed off to the
// persistence collaborator once every channel reaches a terminal state.
type Record struct {
	ID        string                     `json:"id"`
	Request   Request                    `json:"request"`
	Results   map[Channel]DeliveryResult `json:"results"`
	CreatedAt time.Time                  `json:"created_at"`
}

// Terminal reports whether every requested channel has reached a final state.
func (r *Record) Terminal() bool {
	for _, ch := range r.Request.Channels {
		res, ok := r.Results[ch]
		if !ok || !res.Status.Terminal() {
			return false
		}
	}
	return true
}

// AllFailed reports whether every requested channel ended in FAILED or
// EXPIRED. Used to decide whether to raise the all-channels-failed alert.
func (r *Record) AllFailed() bool {
	if len(r.Request.Channels) == 0 {
		return false
	}
	for _, ch := range r.Request.Channels {
		res, ok := r.Results[ch]
		if !ok {
			return false
		}
		if res.Status != StatusFailed && res.Status != StatusExpired {
			return false
		}
	}
	return true
}

// ChannelErrors collects the per-channel error strings, keyed by channel.
// Only channels with a non-empty error are included.
func (r *Record) ChannelErrors() map[string]string {
	errs := make(map[string]string)
	for ch, res := range r.Results {
		if res.Error != "" {
			errs[ch.String()] = res.Error
		}
	}
	return errs
}
