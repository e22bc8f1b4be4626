package signal

import "github.com/okian/gameproof/internal/domain/model"

// DefaultFrameRate is the timebase both sides are sampled at.
const DefaultFrameRate = 30.0

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithFrameRate sets the steps per second used to discretize elapsed time.
func WithFrameRate(fps float64) Option {
	return func(n *Normalizer) {
		if fps > 0 {
			n.frameRate = fps
		}
	}
}

// WithActiveKind selects which event kind counts as active.
func WithActiveKind(k model.EventKind) Option {
	return func(n *Normalizer) { n.active = k }
}

// DefaultMaxSteps bounds the signal length (a little under ten hours at 30 steps/s).
const DefaultMaxSteps = 1 << 20

// WithMaxSteps caps the length a signal may grow to.
func WithMaxSteps(n int64) Option {
	return func(nz *Normalizer) {
		if n > 0 {
			nz.maxSteps = n
		}
	}
}
