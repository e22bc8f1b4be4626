package replay

import "math/bits"

// mt19937 is the 32-bit Mersenne Twister seeded the way CPython seeds its
// module-level generator from a small integer, so gap sequences line up with
// replays recorded by the reference game client.
type mt19937 struct {
	state [mtN]uint32
	idx   int
}

const (
	mtN         = 624
	mtM         = 397
	mtMatrixA   = 0x9908b0df
	mtUpperMask = 0x80000000
	mtLowerMask = 0x7fffffff
)

func newMT19937(seed uint32) *mt19937 {
	m := &mt19937{}
	m.initByArray([]uint32{seed})
	return m
}

func (m *mt19937) initGenrand(s uint32) {
	m.state[0] = s
	for i := 1; i < mtN; i++ {
		prev := m.state[i-1]
		m.state[i] = 1812433253*(prev^(prev>>30)) + uint32(i)
	}
	m.idx = mtN
}

func (m *mt19937) initByArray(key []uint32) {
	m.initGenrand(19650218)
	i, j := 1, 0
	for k := max(mtN, len(key)); k > 0; k-- {
		prev := m.state[i-1]
		m.state[i] = (m.state[i] ^ ((prev ^ (prev >> 30)) * 1664525)) + key[j] + uint32(j)
		i++
		j++
		if i >= mtN {
			m.state[0] = m.state[mtN-1]
			i = 1
		}
		if j >= len(key) {
			j = 0
		}
	}
	for k := mtN - 1; k > 0; k-- {
		prev := m.state[i-1]
		m.state[i] = (m.state[i] ^ ((prev ^ (prev >> 30)) * 1566083941)) - uint32(i)
		i++
		if i >= mtN {
			m.state[0] = m.state[mtN-1]
			i = 1
		}
	}
	m.state[0] = 0x80000000
}

// Uint32 returns the next tempered output.
func (m *mt19937) Uint32() uint32 {
	if m.idx >= mtN {
		for k := 0; k < mtN; k++ {
			y := (m.state[k] & mtUpperMask) | (m.state[(k+1)%mtN] & mtLowerMask)
			v := m.state[(k+mtM)%mtN] ^ (y >> 1)
			if y&1 != 0 {
				v ^= mtMatrixA
			}
			m.state[k] = v
		}
		m.idx = 0
	}
	y := m.state[m.idx]
	m.idx++
	y ^= y >> 11
	y ^= (y << 7) & 0x9d2c5680
	y ^= (y << 15) & 0xefc60000
	y ^= y >> 18
	return y
}

// IntRange draws uniformly from [lo, hi) by rejection sampling on the top
// bits of each output. hi must be greater than lo and the span below 2^32.
func (m *mt19937) IntRange(lo, hi int) int {
	n := uint32(hi - lo)
	k := uint(bits.Len32(n))
	r := m.Uint32() >> (32 - k)
	for r >= n {
		r = m.Uint32() >> (32 - k)
	}
	return lo + int(r)
}
