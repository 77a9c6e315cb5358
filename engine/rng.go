package engine

import "math/rand"

// RNG is the battle's single dice source. Every draw that can affect an
// outcome goes through it, so a seed fully determines a battle.
type RNG struct {
	src *rand.Rand
}

// NewRNG creates a deterministic RNG from a seed.
func NewRNG(seed int64) *RNG {
	return &RNG{src: rand.New(rand.NewSource(seed))}
}

// Roll returns a random integer in [1, sides].
func (r *RNG) Roll(sides int) int {
	return r.src.Intn(sides) + 1
}

// CoinFlip returns true half the time.
func (r *RNG) CoinFlip() bool {
	return r.src.Intn(2) == 0
}
