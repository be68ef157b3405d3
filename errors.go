package colibri

import (
	"errors"
)

// Application errors
var (
	// Configuration errors
	ErrConfigNil                  = errors.New("config is nil")
	ErrConfigNotPointer           = errors.New("config must be a pointer")
	ErrConfigNotStruct            = errors.New("config must be a struct")
	ErrConfigRequiredFieldMissing = errors.New("required field is missing")
	ErrConfigValidationFailed     = errors.New("config validation failed")
	ErrConfigFeederError          = errors.New("config feeder error")
	ErrUnsupportedTypeForDefault  = errors.New("unsupported type for default value")
	ErrDefaultValueParseError     = errors.New("failed to parse default value")
	ErrInvalidSeparator           = errors.New("event separator must be a single character")

	// Module errors
	ErrModuleNil               = errors.New("module is nil")
	ErrModuleAlreadyRegistered = errors.New("module already registered")
	ErrCircularDependency      = errors.New("circular dependency detected")
	ErrModuleDependencyMissing = errors.New("module depends on non-existent module")
	ErrModuleInitFailed        = errors.New("module initialization failed")
	ErrModuleStartFailed       = errors.New("module start failed")

	// Lifecycle errors
	ErrApplicationNotInitialized = errors.New("application not initialized")
	ErrStopCancelled             = errors.New("application stop cancelled")

	// Observer errors
	ErrObserverNil               = errors.New("observer is nil")
	ErrObserverIDEmpty           = errors.New("observer id cannot be empty")
	ErrObserverAlreadyRegistered = errors.New("observer already registered")
)
