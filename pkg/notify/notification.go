package notify

import (
	"time"
)

// Recipient identifies who a notification is for and how each channel
// can reach them. Addresses is keyed by channel: an email address for
// ChannelEmail, a phone number for ChannelSMS and ChannelPhoneCall,
// a device token for ChannelPush. Websocket and in-app delivery are
// addressed by the recipient ID alone.
type Recipient struct {
	ID        string             `json:"id"`
	Addresses map[Channel]string `json:"addresses,omitempty"`
}

// AddressFor returns the delivery address for the given channel.
// For addressless channels (websocket, in-app) it returns the recipient ID.
func (r Recipient) AddressFor(ch Channel) (string, bool) {
	if ch.Addressless() {
		return r.ID, r.ID != ""
	}
	addr, ok := r.Addresses[ch]
	return addr, ok && addr != ""
}

// Reachable reports whether at least one of the given channels has a
// usable address for this recipient.
func (r Recipient) Reachable(channels []Channel) bool {
	for _, ch := range channels {
		if _, ok := r.AddressFor(ch); ok {
			return true
		}
	}
	return false
}

// Template carries the rendered content of a notification. Wording and
// rendering are the caller's business; this engine only transports it.
type Template struct {
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	ActionURL string         `json:"action_url,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// RetryConfig controls retry behavior for failed high-priority deliveries.
type RetryConfig struct {
	MaxAttempts int           `json:"max_attempts"`
	BaseDelay   time.Duration `json:"base_delay"`
	MaxDelay    time.Duration `json:"max_delay"`
	Multiplier  float64       `json:"multiplier"`
	Jitter      float64       `json:"jitter"`
}

// DefaultRetryConfig returns the retry policy applied when a request opts
// into retries without specifying its own parameters.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2,
		Jitter:      0.1,
	}
}

// Normalize fills zero fields with defaults so a partially specified
// config is still usable.
func (c RetryConfig) Normalize() RetryConfig {
	def := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = def.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = def.MaxDelay
	}
	if c.Multiplier <= 1 {
		c.Multiplier = def.Multiplier
	}
	return c
}

// Request is a single notification to be dispatched across one or more
// channels. Channels are attempted in the order given.
type Request struct {
	Type         string       `json:"type"`
	Priority     Priority     `json:"priority"`
	Recipient    Recipient    `json:"recipient"`
	Template     Template     `json:"template"`
	Channels     []Channel    `json:"channels"`
	ScheduleTime *time.Time   `json:"schedule_time,omitempty"`
	Retry        *RetryConfig `json:"retry,omitempty"`
}

// Validate fails fast on requests the dispatcher cannot act on:
// an empty or invalid channel list, a recipient without an ID, or a
// recipient with no usable address for any requested channel.
func (r Request) Validate() error {
	if len(r.Channels) == 0 {
		return ErrNoChannels
	}
	for _, ch := range r.Channels {
		if !ch.Valid() {
			return ErrInvalidChannel
		}
	}
	if r.Recipient.ID == "" {
		return ErrNoRecipient
	}
	if !r.Recipient.Reachable(r.Channels) {
		return ErrNoUsableAddress
	}
	return nil
}
