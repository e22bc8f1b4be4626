// Package signal turns ordered key event records into binary indicator
// signals sampled on a common frame timebase.
package signal

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/okian/gameproof/internal/domain/model"
)

// Indicator holds one 0/1 value per frame step.
type Indicator []uint8

// Ones counts the active steps.
func (s Indicator) Ones() int {
	n := 0
	for _, v := range s {
		if v != 0 {
			n++
		}
	}
	return n
}

// Normalizer projects event records onto indicator signals.
type Normalizer struct {
	frameRate float64
	active    model.EventKind
	maxSteps  int64
}

// NewNormalizer returns a Normalizer at 30 steps/s counting key-down events.
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{frameRate: DefaultFrameRate, active: model.KeyDown, maxSteps: DefaultMaxSteps}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// FrameRate returns the configured timebase.
func (n *Normalizer) FrameRate() float64 { return n.frameRate }

// Video builds the signal of the video side, where each record's Ref is an
// integer frame index.
func (n *Normalizer) Video(records []model.EventRecord) (Indicator, error) {
	var (
		out    Indicator
		origin int64
	)
	for i, r := range records {
		if r.Kind != n.active {
			continue
		}
		frame, err := strconv.ParseInt(strings.TrimSpace(r.Ref), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: frame %q", ErrMalformedEventStream, i, r.Ref)
		}
		if out == nil {
			origin = frame
			out = Indicator{1}
			continue
		}
		offset := frame - origin
		if (frame >= origin) != (offset >= 0) {
			return nil, fmt.Errorf("%w: record %d: frame %d too far from origin %d", ErrMalformedEventStream, i, frame, origin)
		}
		if out, err = n.mark(out, offset); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	if out == nil {
		return nil, fmt.Errorf("%w: no %s events", ErrMalformedEventStream, n.active)
	}
	return out, nil
}

// Input builds the signal of the input side, where each record's Ref is a
// timestamp in seconds. It also returns the unrounded elapsed time of every
// qualifying record relative to the first one.
func (n *Normalizer) Input(records []model.EventRecord) (Indicator, []float64, error) {
	var (
		out     Indicator
		elapsed []float64
		origin  float64
	)
	for i, r := range records {
		if r.Kind != n.active {
			continue
		}
		ts, err := strconv.ParseFloat(strings.TrimSpace(r.Ref), 64)
		if err != nil || math.IsNaN(ts) || math.IsInf(ts, 0) {
			return nil, nil, fmt.Errorf("%w: record %d: timestamp %q", ErrMalformedEventStream, i, r.Ref)
		}
		if out == nil {
			origin = ts
			out = Indicator{1}
			elapsed = append(elapsed, 0)
			continue
		}
		rel := ts - origin
		elapsed = append(elapsed, rel)
		// half-to-even, matching the rounding capture tools were calibrated with
		step := math.RoundToEven(rel * n.frameRate)
		switch {
		case step < 0:
			step = -1
		case step >= float64(n.maxSteps):
			step = float64(n.maxSteps)
		}
		if out, err = n.mark(out, int64(step)); err != nil {
			return nil, nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	if out == nil {
		return nil, nil, fmt.Errorf("%w: no %s events", ErrMalformedEventStream, n.active)
	}
	return out, elapsed, nil
}

// mark sets offset to 1, zero-filling the gap. Offsets inside the emitted
// range are coincident and leave the signal unchanged.
func (n *Normalizer) mark(s Indicator, offset int64) (Indicator, error) {
	if offset < int64(len(s)) {
		return s, nil
	}
	if offset >= n.maxSteps {
		return nil, fmt.Errorf("%w: offset %d exceeds %d steps", ErrMalformedEventStream, offset, n.maxSteps)
	}
	for int64(len(s)) < offset {
		s = append(s, 0)
	}
	return append(s, 1), nil
}

// Pad returns both signals zero-extended to the longer length. The inputs
// are not modified.
func Pad(a, b Indicator) (Indicator, Indicator) {
	n := max(len(a), len(b))
	return extend(a, n), extend(b, n)
}

func extend(s Indicator, n int) Indicator {
	out := make(Indicator, n)
	copy(out, s)
	return out
}
