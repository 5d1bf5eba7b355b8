package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when stopping a trigger that was never started
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")
)
