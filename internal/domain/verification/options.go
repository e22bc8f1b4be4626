package verification

import (
	"sync"
	"time"

	"github.com/okian/gameproof/internal/domain/correlate"
	"github.com/okian/gameproof/internal/domain/model"
	"github.com/okian/gameproof/internal/domain/replay"
	"github.com/okian/gameproof/internal/domain/signal"
	"github.com/okian/gameproof/pkg/logger"
)

// Default limits.
const (
	DefaultExtractTimeout = 30 * time.Second
	DefaultMaxInputEvents = 100000
)

// Option configures a Service.
type Option func(*Service)

// WithNormalizer replaces the default 30 fps normalizer.
func WithNormalizer(n *signal.Normalizer) Option {
	return func(s *Service) {
		if n != nil {
			s.normalizer = n
		}
	}
}

// WithCorrelator replaces the default threshold correlator.
func WithCorrelator(c *correlate.Correlator) Option {
	return func(s *Service) {
		if c != nil {
			s.correlator = c
		}
	}
}

// WithSimulator replaces the default-seed simulator.
func WithSimulator(sim *replay.Simulator) Option {
	return func(s *Service) {
		if sim != nil {
			s.simulator = sim
		}
	}
}

// WithLocker serializes uploads and verifications per identity.
func WithLocker(l Locker) Option {
	return func(s *Service) {
		if l != nil {
			s.locks = l
		}
	}
}

// WithLeaderboard records every signed score.
func WithLeaderboard(r Recorder) Option {
	return func(s *Service) { s.leaderboard = r }
}

// WithNotifier receives every finished outcome.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithTokens also issues an identity-bound token for each signed score.
func WithTokens(enabled bool) Option {
	return func(s *Service) { s.issueTokens = enabled }
}

// WithExtractTimeout bounds the extraction call.
func WithExtractTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.extractTimeout = d
		}
	}
}

// WithMaxInputEvents caps the number of rows read from an input CSV.
func WithMaxInputEvents(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxInputEvents = n
		}
	}
}

// WithIDGenerator overrides attempt id generation.
func WithIDGenerator(f func() string) Option {
	return func(s *Service) {
		if f != nil {
			s.newID = f
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// globalLocker serializes everything. Used when no keyed locker is supplied.
type globalLocker struct{ mu sync.Mutex }

func (g *globalLocker) Lock(_ model.Identity) func() {
	g.mu.Lock()
	return g.mu.Unlock
}
