package httpserver

import "errors"

var (
	// ErrServerNotStarted is returned when stopping a server that was never started.
	ErrServerNotStarted = errors.New("server not started")

	// ErrServerAlreadyStarted is returned when Start is called twice.
	ErrServerAlreadyStarted = errors.New("server already started")

	// ErrNotInitialized is returned when Start is called before Init.
	ErrNotInitialized = errors.New("httpserver module not initialized")
)
