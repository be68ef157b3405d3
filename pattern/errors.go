package pattern

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicatePlaceholder   = errors.New("duplicate placeholder")
	ErrUnbalancedBraces       = errors.New("unbalanced braces")
	ErrInvalidRegex           = errors.New("invalid regular expression")
	ErrInvalidPlaceholderName = errors.New("invalid placeholder name")
)

// PatternError reports a pattern that cannot be compiled. It is a
// configuration error and is never retried.
type PatternError struct {
	Pattern string
	Reason  string
	Err     error
}

func (e *PatternError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("pattern %q: %v", e.Pattern, e.Err)
	}
	return fmt.Sprintf("pattern %q: %v: %s", e.Pattern, e.Err, e.Reason)
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

func newPatternError(pattern string, sentinel error, format string, args ...any) *PatternError {
	return &PatternError{Pattern: pattern, Reason: fmt.Sprintf(format, args...), Err: sentinel}
}
