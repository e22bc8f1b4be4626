package repository

import "time"

type storeOptions struct {
	now       func() time.Time
	ttl       time.Duration
	keyPrefix string
}

func defaultStoreOptions() storeOptions {
	return storeOptions{now: time.Now, keyPrefix: "gameproof"}
}

// StoreOption configures a submission store backend.
type StoreOption func(*storeOptions)

// WithClock overrides the time source used for UpdatedAt.
func WithClock(now func() time.Time) StoreOption {
	return func(o *storeOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithPendingTTL bounds how long a pending submission lives. Only the redis
// backend enforces it natively; other backends rely on Sweep.
func WithPendingTTL(ttl time.Duration) StoreOption {
	return func(o *storeOptions) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithKeyPrefix namespaces redis keys.
func WithKeyPrefix(prefix string) StoreOption {
	return func(o *storeOptions) {
		if prefix != "" {
			o.keyPrefix = prefix
		}
	}
}
