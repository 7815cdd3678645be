package channel

import "errors"

var (
	ErrNilProvider       = errors.New("nil channel provider")
	ErrUnknownChannel    = errors.New("unknown channel")
	ErrDuplicateProvider = errors.New("provider already registered for channel")
	ErrInboxFull         = errors.New("in-app inbox is full")
)
