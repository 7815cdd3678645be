package alert

import "errors"

var (
	ErrInvalidSeverity  = errors.New("unknown alert severity")
	ErrCategoryRequired = errors.New("alert category is required")
	ErrTitleRequired    = errors.New("alert title is required")
)
