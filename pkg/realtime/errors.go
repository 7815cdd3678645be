package realtime

import "errors"

var (
	ErrRecipientRequired  = errors.New("recipient ID is required")
	ErrTransportRequired  = errors.New("transport is required")
	ErrTooManyConnections = errors.New("recipient connection limit reached")
	ErrConnectionNotFound = errors.New("connection not found")
	ErrUnknownTopic       = errors.New("topic is not available")
)
