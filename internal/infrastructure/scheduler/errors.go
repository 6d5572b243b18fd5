package scheduler

import "errors"

var (
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrSyncInProgress is returned when a sync is requested while another
	// one is still running
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrSyncTimeout is returned when a sync exceeds the job timeout
	ErrSyncTimeout = errors.New("sync timed out")
)
