package worker

import "errors"

// Sentinel kinds for worker errors.
var (
	ErrSaturated = errors.New("worker pool saturated")
	ErrStopped   = errors.New("worker pool stopped")
)
