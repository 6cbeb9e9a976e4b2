package core

import "math/rand/v2"

// Source supplies uniformly distributed integers in [0, n). It is satisfied
// by *rand.Rand from math/rand/v2.
type Source interface {
	IntN(n int) int
}

// NewSource returns a deterministic PCG-backed source for the given seed.
func NewSource(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
