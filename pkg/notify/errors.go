package notify

import "errors"

var (
	ErrNoChannels      = errors.New("notification has no channels")
	ErrInvalidChannel  = errors.New("unknown notification channel")
	ErrNoRecipient     = errors.New("notification has no recipient")
	ErrNoUsableAddress = errors.New("recipient has no usable address for any requested channel")
)
