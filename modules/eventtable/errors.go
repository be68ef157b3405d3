package eventtable

import "errors"

var (
	ErrPatternEmpty   = errors.New("binding pattern cannot be empty")
	ErrNotInitialized = errors.New("eventtable module not initialized")
)
