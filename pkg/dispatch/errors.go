package dispatch

import "errors"

var (
	ErrRegistryRequired = errors.New("channel registry is required")
	ErrDispatcherClosed = errors.New("dispatcher is shut down")
	ErrRecordNotFound   = errors.New("notification record not found")
)
