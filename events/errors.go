package events

import "errors"

var (
	// Dispatch errors
	ErrEventNil      = errors.New("event is nil")
	ErrHandlerFailed = errors.New("event handler failed")

	// Registry errors
	ErrHandlerNil               = errors.New("event handler cannot be nil")
	ErrHandlerNameEmpty         = errors.New("event handler name cannot be empty")
	ErrHandlerAlreadyRegistered = errors.New("event handler already registered")
	ErrHandlerNotFound          = errors.New("event handler not found")
	ErrRegistryNil              = errors.New("event handler registry is nil")

	// Snapshot errors
	ErrHandlerNotNamed            = errors.New("event handler is not named and cannot be exported")
	ErrUnsupportedSnapshotVersion = errors.New("unsupported snapshot version")
	ErrUnsupportedFormat          = errors.New("unsupported snapshot format")
	ErrInvalidSeparator           = errors.New("snapshot separator must be a single character")
)
