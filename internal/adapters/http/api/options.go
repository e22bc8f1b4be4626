package api

import "github.com/okian/gameproof/pkg/logger"

// Defaults applied by NewServer.
const (
	DefaultMaxBlobBytes        = 64 << 20
	DefaultMaxLeaderboardLimit = 100
)

// Option configures NewServer.
type Option func(*options)

type options struct {
	maxBlobBytes        int64
	maxLeaderboardLimit int
	logger              logger.Logger
}

func defaultOptions() options {
	return options{
		maxBlobBytes:        DefaultMaxBlobBytes,
		maxLeaderboardLimit: DefaultMaxLeaderboardLimit,
	}
}

// WithMaxBlobBytes caps the base64 text accepted by the upload routes.
func WithMaxBlobBytes(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBlobBytes = n
		}
	}
}

// WithMaxLeaderboardLimit caps GET /leaderboard?limit.
func WithMaxLeaderboardLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxLeaderboardLimit = n
		}
	}
}

// WithLogger sets the logger used for request failures.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.logger = l }
}
