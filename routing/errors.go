package routing

import (
	"errors"
	"fmt"
)

var (
	// Callback errors
	ErrNotAFunction       = errors.New("callback must be a function")
	ErrUnresolvedArgument = errors.New("could not resolve parameter")
	ErrTooManyResults     = errors.New("callback returns too many values")

	// Dispatch errors
	ErrRequestNil  = errors.New("request is nil")
	ErrActionNil   = errors.New("route action is nil")
	ErrFilterError = errors.New("route filter failed")
	ErrGuardError  = errors.New("route guard failed")
)

// ArgumentResolutionError reports a callback parameter that could not be
// resolved from the dispatch context.
type ArgumentResolutionError struct {
	Param string
	Err   error
}

func (e *ArgumentResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("could not resolve %q parameter: %v", e.Param, e.Err)
	}
	return fmt.Sprintf("could not resolve %q parameter", e.Param)
}

func (e *ArgumentResolutionError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrUnresolvedArgument, e.Err}
	}
	return []error{ErrUnresolvedArgument}
}
