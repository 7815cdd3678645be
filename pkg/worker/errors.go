package worker

import "errors"

var (
	ErrRunnerStarted    = errors.New("runner already started")
	ErrTaskNameRequired = errors.New("task name is required")
	ErrTaskRequired     = errors.New("task function is required")
	ErrInvalidInterval  = errors.New("task interval must be positive")
	ErrDuplicateTask    = errors.New("task name already registered")
)
