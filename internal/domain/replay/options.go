package replay

// Option configures a Simulator.
type Option func(*Simulator)

// WithSeed replaces DefaultSeed. Scores produced under another seed are not
// comparable with attested ones.
func WithSeed(seed uint32) Option {
	return func(s *Simulator) { s.seed = seed }
}
