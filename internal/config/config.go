// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() returns a Config holding every default.
// - Load layers a YAML file and environment variables on top of New().
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"strings"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StorePebble = "pebble"
)

// Extractor modes.
const (
	ExtractorHTTP     = "http"
	ExtractorFrameCSV = "frame_csv"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoder: text (slog) or json (zap).
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// FrameRate is the common timebase both indicator signals are sampled at.
	FrameRate float64 `koanf:"frame_rate"`

	// CorrelationThreshold is the minimum similarity accepted as a match.
	CorrelationThreshold float64 `koanf:"correlation_threshold"`

	// StoreBackend picks the submission store: memory, redis or pebble.
	StoreBackend string `koanf:"store_backend"`

	// PebblePath is the data directory of the pebble backend.
	PebblePath string `koanf:"pebble_path"`

	RedisAddr      string `koanf:"redis_addr"`
	RedisPassword  string `koanf:"redis_password"`
	RedisDB        int    `koanf:"redis_db"`
	RedisKeyPrefix string `koanf:"redis_key_prefix"`

	// PendingTTLSeconds bounds how long an incomplete submission is kept.
	PendingTTLSeconds int `koanf:"pending_ttl_seconds"`

	// SweepSchedule is the cron spec (with seconds) of the stale submission sweep.
	SweepSchedule string `koanf:"sweep_schedule"`

	// ExtractorMode selects how key events are recovered from the video blob.
	ExtractorMode string `koanf:"extractor_mode"`

	// ExtractorURL is the model server endpoint used in http mode.
	ExtractorURL string `koanf:"extractor_url"`

	// ExtractorTimeoutMS bounds a single extraction call.
	ExtractorTimeoutMS int `koanf:"extractor_timeout_ms"`

	// AttestorKey is a hex or base64 encoded 32 byte Ed25519 seed.
	AttestorKey string `koanf:"attestor_key"`

	// AttestorKeyFile points at a file holding the seed in the same encoding.
	AttestorKeyFile string `koanf:"attestor_key_file"`

	// IssueTokens enables the identity-bound EdDSA attestation token.
	IssueTokens bool `koanf:"issue_tokens"`

	// TokenIssuer is the iss claim of issued tokens.
	TokenIssuer string `koanf:"token_issuer"`

	// TokenTTLSeconds sets the exp claim of issued tokens. Zero disables expiry.
	TokenTTLSeconds int `koanf:"token_ttl_seconds"`

	// VerifyWorkers sets the size of the verification worker pool.
	VerifyWorkers int `koanf:"verify_workers"`

	// VerifyQueueSize bounds verifications waiting for a worker.
	VerifyQueueSize int `koanf:"verify_queue_size"`

	// MaxBlobBytes caps the size of an uploaded blob (base64 text).
	MaxBlobBytes int64 `koanf:"max_blob_bytes"`

	// MaxInputEvents caps the number of decoded input rows.
	MaxInputEvents int `koanf:"max_input_events"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// NotifyChannel is the redis channel outcomes are published on. Empty disables publishing.
	NotifyChannel string `koanf:"notify_channel"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9080",
		FrameRate:            30,
		CorrelationThreshold: 0.5,
		StoreBackend:         StoreMemory,
		PebblePath:           "data/submissions",
		RedisAddr:            "localhost:6379",
		RedisKeyPrefix:       "gameproof",
		PendingTTLSeconds:    3600,
		SweepSchedule:        "0 */5 * * * *",
		ExtractorMode:        ExtractorFrameCSV,
		ExtractorURL:         "http://localhost:8500/extract",
		ExtractorTimeoutMS:   30_000,
		TokenIssuer:          "gameproof",
		VerifyWorkers:        runtime.NumCPU(),
		VerifyQueueSize:      1024,
		MaxBlobBytes:         64 << 20,
		MaxInputEvents:       100_000,
		MaxLeaderboardLimit:  100,
	}
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.FrameRate <= 0 {
		return fmt.Errorf("%w: frame_rate must be positive", ErrInvalidConfig)
	}
	if c.CorrelationThreshold < -1 || c.CorrelationThreshold > 1 {
		return fmt.Errorf("%w: correlation_threshold must be within [-1, 1]", ErrInvalidConfig)
	}
	switch strings.ToLower(c.StoreBackend) {
	case StoreMemory, StoreRedis:
	case StorePebble:
		if c.PebblePath == "" {
			return fmt.Errorf("%w: pebble_path must not be empty", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store_backend %q", ErrInvalidConfig, c.StoreBackend)
	}
	switch strings.ToLower(c.ExtractorMode) {
	case ExtractorFrameCSV:
	case ExtractorHTTP:
		if c.ExtractorURL == "" {
			return fmt.Errorf("%w: extractor_url must not be empty", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown extractor_mode %q", ErrInvalidConfig, c.ExtractorMode)
	}
	if c.VerifyWorkers <= 0 {
		return fmt.Errorf("%w: verify_workers must be positive", ErrInvalidConfig)
	}
	if c.VerifyQueueSize < 0 {
		return fmt.Errorf("%w: verify_queue_size must not be negative", ErrInvalidConfig)
	}
	return nil
}
