package submitclient

import (
	"encoding/base64"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

// Gap bounds between generated key presses, in seconds.
const (
	minPressGap = 0.12
	maxPressGap = 0.95
	keyHold     = 0.08
)

// Session is one played game: the elapsed time of every key press relative
// to the first one, as seen by both the camera and the keyboard.
type Session struct {
	PlayerID uint64
	Presses  []float64
	// Inputs is what the keyboard log reports. It equals Presses unless the
	// session was tampered with.
	Inputs   []float64
	Tampered bool
}

// Generator produces reproducible sessions.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator seeds a generator.
func NewGenerator(seed uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Session returns a session of n presses for id.
func (g *Generator) Session(id uint64, n int) Session {
	if n < 1 {
		n = 1
	}
	presses := make([]float64, n)
	for i := 1; i < n; i++ {
		presses[i] = presses[i-1] + minPressGap + g.rng.Float64()*(maxPressGap-minPressGap)
	}
	return Session{PlayerID: id, Presses: presses, Inputs: presses}
}

// Shift returns a copy whose keyboard log is moved by d after the first press,
// so the camera and the keyboard no longer agree.
func (s Session) Shift(d time.Duration) Session {
	inputs := make([]float64, len(s.Inputs))
	copy(inputs, s.Inputs)
	for i := 1; i < len(inputs); i++ {
		inputs[i] += d.Seconds()
	}
	s.Inputs = inputs
	s.Tampered = true
	return s
}

// VideoBlob renders the frame CSV the extraction step would report for the
// camera recording, base64 encoded.
func (s Session) VideoBlob() string {
	var b strings.Builder
	b.WriteString("frame,event\n")
	for _, t := range s.Presses {
		fmt.Fprintf(&b, "%d,Key down\n", videoFrameOffset+int64(math.RoundToEven(t*frameRate)))
	}
	return base64.StdEncoding.EncodeToString([]byte(b.String()))
}

// InputBlob renders the keystroke log, base64 encoded. Every press is
// followed by its release.
func (s Session) InputBlob() string {
	var b strings.Builder
	b.WriteString("timestamp,event\n")
	for _, t := range s.Inputs {
		b.WriteString(strconv.FormatFloat(t, 'g', -1, 64))
		b.WriteString(",Key down\n")
		b.WriteString(strconv.FormatFloat(t+keyHold, 'g', -1, 64))
		b.WriteString(",Key up\n")
	}
	return base64.StdEncoding.EncodeToString([]byte(b.String()))
}
