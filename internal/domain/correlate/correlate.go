// Package correlate decides whether two indicator signals describe the same
// typing session.
//
// Both signals are smoothed with a fixed forward-looking kernel, scaled to
// unit length and compared by their dot product. The kernel shape and the
// order smooth -> normalize -> dot are part of the attestation protocol.
package correlate

import (
	"errors"
	"fmt"
	"math"

	"github.com/okian/gameproof/internal/domain/signal"
)

// DefaultThreshold is the minimum similarity accepted as a match.
const DefaultThreshold = 0.5

var (
	// ErrDegenerateSignal reports a zero-energy signal with undefined similarity.
	ErrDegenerateSignal = errors.New("degenerate signal")
	// ErrBelowThreshold reports a similarity under the acceptance threshold.
	ErrBelowThreshold = errors.New("correlation below threshold")
)

// Kernel returns a copy of the smoothing weights.
func Kernel() []float64 {
	return append([]float64(nil), kernel[:]...)
}

var kernel = [...]float64{0.5, 0.5, 1, 1, 1, 1, 1, 0.5, 0.5}

// Smooth computes out[i] = sum_j kernel[j] * s[i+j] over the window
// [i, i+len(kernel)) clipped at the end of s.
func Smooth(s signal.Indicator) []float64 {
	out := make([]float64, len(s))
	for i := range s {
		var acc float64
		for j, w := range kernel {
			if i+j >= len(s) {
				break
			}
			if s[i+j] != 0 {
				acc += w
			}
		}
		out[i] = acc
	}
	return out
}

// unit scales v to Euclidean length one.
func unit(v []float64) ([]float64, error) {
	var sq float64
	for _, x := range v {
		sq += x * x
	}
	norm := math.Sqrt(sq)
	if norm == 0 {
		return nil, ErrDegenerateSignal
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out, nil
}

// Similarity pads both signals to equal length, smooths them and returns the
// dot product of their unit vectors, a value in [-1, 1].
func Similarity(a, b signal.Indicator) (float64, error) {
	pa, pb := signal.Pad(a, b)
	ua, err := unit(Smooth(pa))
	if err != nil {
		return 0, fmt.Errorf("video side: %w", err)
	}
	ub, err := unit(Smooth(pb))
	if err != nil {
		return 0, fmt.Errorf("input side: %w", err)
	}
	var dot float64
	for i := range ua {
		dot += ua[i] * ub[i]
	}
	return dot, nil
}

// Correlator applies the acceptance threshold to Similarity.
type Correlator struct {
	threshold float64
}

// Option configures a Correlator.
type Option func(*Correlator)

// WithThreshold overrides DefaultThreshold.
func WithThreshold(t float64) Option {
	return func(c *Correlator) { c.threshold = t }
}

// New returns a Correlator.
func New(opts ...Option) *Correlator {
	c := &Correlator{threshold: DefaultThreshold}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Threshold returns the acceptance threshold.
func (c *Correlator) Threshold() float64 { return c.threshold }

// Match returns the similarity of video and input. The error wraps
// ErrBelowThreshold when the signals do not match, and the similarity is
// still returned for reporting.
func (c *Correlator) Match(video, input signal.Indicator) (float64, error) {
	score, err := Similarity(video, input)
	if err != nil {
		return 0, err
	}
	if score < c.threshold {
		return score, fmt.Errorf("%w: %.4f < %.4f", ErrBelowThreshold, score, c.threshold)
	}
	return score, nil
}
