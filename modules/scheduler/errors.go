package scheduler

import "errors"

var (
	ErrJobNameEmpty     = errors.New("job name cannot be empty")
	ErrJobEventEmpty    = errors.New("job event cannot be empty")
	ErrJobAlreadyExists = errors.New("job already exists")
	ErrJobNotFound      = errors.New("job not found")
	ErrInvalidSchedule  = errors.New("invalid cron schedule")
	ErrNotInitialized   = errors.New("scheduler module not initialized")
	ErrAlreadyStarted   = errors.New("scheduler already started")
)
