package repository

import (
	"time"

	"github.com/okian/gameproof/pkg/metrics"
)

// Backend names, as used in configuration and metric labels.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendPebble = "pebble"
)

func observe(backend, op string, start time.Time) {
	metrics.RecordStoreLatency(backend, op, float64(time.Since(start).Microseconds())/1000)
}
