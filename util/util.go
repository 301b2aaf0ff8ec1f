// Package util holds small seeded-randomness helpers shared by the
// partition builder, the merger, and tests that need reproducible vectors.
package util

import "math/rand"

// RNG wraps a seeded math/rand generator. A fixed seed makes the build's
// vertex permutation and the merger's Fisher-Yates subset selection
// reproducible across runs, as required by the beam-search determinism
// scenario.
type RNG struct {
	rand *rand.Rand
	seed int64
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)), // nolint gosec
		seed: seed,
	}
}

// WrapRNG adapts a caller-supplied *rand.Rand (e.g. from WithRandSource)
// into an RNG. Seed() returns 0 since the source's seed isn't recoverable.
func WrapRNG(r *rand.Rand) *RNG {
	return &RNG{rand: r}
}

// Seed returns the seed this RNG was constructed with.
func (r *RNG) Seed() int64 {
	return r.seed
}

// GenerateRandomVectors generates random vectors using the given RNG.
func (r *RNG) GenerateRandomVectors(num int, dimensions int) [][]float32 {
	vectors := make([][]float32, num)
	for i := range vectors {
		vectors[i] = make([]float32, dimensions)
		for j := range vectors[i] {
			vectors[i][j] = r.rand.Float32()
		}
	}

	return vectors
}

// GenerateGaussianVectors generates num vectors of the given dimension drawn
// from a standard normal distribution, used by the PQ round-trip and degree
// cap test scenarios.
func (r *RNG) GenerateGaussianVectors(num int, dimensions int) [][]float32 {
	vectors := make([][]float32, num)
	for i := range vectors {
		vectors[i] = make([]float32, dimensions)
		for j := range vectors[i] {
			vectors[i][j] = float32(r.rand.NormFloat64())
		}
	}
	return vectors
}

// Permutation returns a random permutation of [0, n).
func (r *RNG) Permutation(n int) []int {
	return r.rand.Perm(n)
}

// Shuffle performs an in-place Fisher-Yates shuffle over n elements using
// the provided swap function.
func (r *RNG) Shuffle(n int, swap func(i, j int)) {
	r.rand.Shuffle(n, swap)
}

// IntN returns a pseudo-random number in [0, n).
func (r *RNG) IntN(n int) int {
	return r.rand.Intn(n)
}
