// Package replay re-executes a recorded play session through the game's
// physics to derive its score.
//
// The simulation is a pure function of the jump timestamps: the obstacle
// generator is seeded at the start of every run and nothing reads the clock.
// Every constant below, the score dependent step rate included, decides which
// step a timestamp lands in and is therefore part of the attestation protocol.
package replay

import (
	"math"

	"github.com/okian/gameproof/internal/domain/model"
)

// Protocol constants.
const (
	DefaultSeed = 1337

	PlayfieldWidth  = 500
	PlayfieldHeight = 800
	GroundY         = 730
	GroundWidth     = 672
	GroundSpeed     = 5

	BirdStartX   = 230
	BirdStartY   = 350
	BirdWidth    = 68
	BirdHeight   = 48
	JumpVelocity = -10.5
	Gravity      = 3.0 // acceleration a in v*t + a*t^2/2
	MaxFall      = 16.0
	JumpBoost    = 2.0
	MaxRotation  = 25
	RotationStep = 20
	MinRotation  = -90

	PipeWidth  = 104
	PipeHeight = 640
	PipeGap    = 200
	PipeSpeed  = 5
	FirstPipeX = 700
	SpawnPipeX = 600
	GapMin     = 50
	GapMax     = 450

	// stepSlack shortens every step slightly; recorded sessions were
	// calibrated against it.
	stepSlack = 0.0001
)

// StepRate returns the number of simulation steps per second at score.
func StepRate(score model.Score) int {
	switch {
	case score < 10:
		return 25
	case score < 20:
		return 27
	case score < 30:
		return 29
	case score < 40:
		return 31
	case score < 50:
		return 33
	case score < 100:
		return 34
	default:
		return 40
	}
}

// StepDuration returns the simulated seconds covered by one step at score.
func StepDuration(score model.Score) float64 {
	return 1/float64(StepRate(score)) - stepSlack
}

// Bird is the player controlled entity.
type Bird struct {
	X, Y       float64
	Velocity   float64
	Angle      int
	Tick       int     // steps since the last jump
	JumpHeight float64 // Y at the last jump
}

func (b *Bird) jump() {
	b.Velocity = JumpVelocity
	b.Tick = 0
	b.JumpHeight = b.Y
}

func (b *Bird) move() {
	b.Tick++
	t := float64(b.Tick)
	// explicit conversions keep each product rounded on its own
	d := float64(b.Velocity*t) + float64(Gravity/2*float64(b.Tick*b.Tick))
	switch {
	case d > MaxFall:
		d = MaxFall
	case d < 0:
		d -= JumpBoost
	}
	b.Y += d
	if d < 0 || b.Y < b.JumpHeight+50 {
		if b.Angle < MaxRotation {
			b.Angle = MaxRotation
		}
	} else if b.Angle > MinRotation {
		b.Angle -= RotationStep
	}
}

// Pipe is one obstacle pair. Gap is the y of the lower edge of the top
// segment; the bottom segment starts PipeGap below it.
type Pipe struct {
	X      int
	Gap    int
	Passed bool
}

// Top returns the y of the top segment's upper edge.
func (p Pipe) Top() int { return p.Gap - PipeHeight }

// Bottom returns the y of the bottom segment's upper edge.
func (p Pipe) Bottom() int { return p.Gap + PipeGap }

// Collides reports whether the bird's bounding box overlaps either segment.
func (p Pipe) Collides(b Bird) bool {
	y := int(math.RoundToEven(b.Y))
	bx := int(b.X)
	return overlaps(bx, y, p.X, p.Top()) || overlaps(bx, y, p.X, p.Bottom())
}

func overlaps(bx, by, px, py int) bool {
	return px < bx+BirdWidth && px+PipeWidth > bx &&
		py < by+BirdHeight && py+PipeHeight > by
}

// Ground holds the two scrolling ground tiles.
type Ground struct {
	X1, X2 int
}

func (g *Ground) move() {
	g.X1 -= GroundSpeed
	g.X2 -= GroundSpeed
	if g.X1+GroundWidth < 0 {
		g.X1 = g.X2 + GroundWidth
	}
	if g.X2+GroundWidth < 0 {
		g.X2 = g.X1 + GroundWidth
	}
}

// Frame is the game state after a step.
type Frame struct {
	Step    int
	Elapsed float64 // simulated seconds before the step
	Jumped  bool
	Score   model.Score
	Alive   bool
	Bird    Bird
	Pipes   []Pipe
	Ground  Ground
}

// Simulator replays input timestamps.
type Simulator struct {
	seed uint32
}

// New returns a Simulator using DefaultSeed.
func New(opts ...Option) *Simulator {
	s := &Simulator{seed: DefaultSeed}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Simulate returns the final score of a session whose jumps happened at the
// given elapsed times (seconds, ascending).
func Simulate(inputs []float64) model.Score {
	return New().Simulate(inputs)
}

// Simulate returns the final score for inputs.
func (s *Simulator) Simulate(inputs []float64) model.Score {
	return s.Trace(inputs, nil)
}

// Trace runs the simulation and calls fn with a snapshot after every step.
// fn may be nil. The snapshot's Pipes slice is a copy.
func (s *Simulator) Trace(inputs []float64, fn func(Frame)) model.Score {
	g := newGame(s.seed)
	for step := 1; ; step++ {
		elapsed := g.elapsed
		jumped := g.step(inputs)
		if fn != nil {
			fn(Frame{
				Step:    step,
				Elapsed: elapsed,
				Jumped:  jumped,
				Score:   g.score,
				Alive:   g.alive,
				Bird:    g.bird,
				Pipes:   append([]Pipe(nil), g.pipes...),
				Ground:  g.ground,
			})
		}
		if !g.alive {
			return g.score
		}
	}
}

type game struct {
	rng     *mt19937
	bird    Bird
	pipes   []Pipe
	ground  Ground
	score   model.Score
	alive   bool
	elapsed float64
	cursor  int
}

func newGame(seed uint32) *game {
	g := &game{
		rng:    newMT19937(seed),
		bird:   Bird{X: BirdStartX, Y: BirdStartY, JumpHeight: BirdStartY},
		ground: Ground{X1: 0, X2: GroundWidth},
		alive:  true,
	}
	g.pipes = append(g.pipes, g.spawn(FirstPipeX))
	return g
}

func (g *game) spawn(x int) Pipe {
	return Pipe{X: x, Gap: g.rng.IntRange(GapMin, GapMax)}
}

// step advances one step and reports whether an input was consumed.
func (g *game) step(inputs []float64) bool {
	dt := StepDuration(g.score)
	jumped := false
	if g.cursor < len(inputs) && inputs[g.cursor] < g.elapsed+dt {
		g.cursor++
		g.bird.jump()
		jumped = true
	}

	g.bird.move()
	g.ground.move()

	// Pipes move twice per step. Collision and passing are judged between
	// the two moves; a bird that collides still scores the pipe it hit.
	spawn := false
	kept := g.pipes[:0]
	for _, p := range g.pipes {
		p.X -= PipeSpeed
		if g.alive {
			if p.Collides(g.bird) {
				g.alive = false
			}
			if !p.Passed && g.bird.X > float64(p.X) {
				p.Passed = true
				spawn = true
			}
		}
		p.X -= PipeSpeed
		if p.X+PipeWidth >= 0 {
			kept = append(kept, p)
		}
	}
	g.pipes = kept
	if spawn {
		g.score++
		g.pipes = append(g.pipes, g.spawn(SpawnPipeX))
	}

	if g.alive && (g.bird.Y+BirdHeight > GroundY || g.bird.Y < 0) {
		g.alive = false
	}
	g.elapsed += dt
	return jumped
}
