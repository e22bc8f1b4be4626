package worker

import (
	"github.com/okian/gameproof/pkg/logger"
)

// Option applies a configuration option to the NotifyWorker.
type Option func(*NotifyWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *NotifyWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *NotifyWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolLogger sets a custom logger for the pool.
func WithPoolLogger(l logger.Logger) PoolOption {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}
