package attendance

import (
	"hash/fnv"
	"math/rand/v2"
)

// seedFor hashes identifying parts into a PRNG seed, so a given input always
// draws the same sequence.
func seedFor(parts ...string) uint64 {
	h := fnv.New64a()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return h.Sum64()
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// between draws uniformly from [lo, hi].
func between(r *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.IntN(hi-lo+1)
}

// chance returns true with probability p.
func chance(r *rand.Rand, p float64) bool {
	return r.Float64() < p
}
