package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateRandomVectors(t *testing.T) {
	rng := NewRNG(4711)

	v := rng.GenerateRandomVectors(8, 32)

	assert.Equal(t, 8, len(v))
	assert.Equal(t, 32, len(v[0]))
	assert.LessOrEqual(t, v[0][0], float32(1.0))
	assert.GreaterOrEqual(t, v[1][0], float32(0.0))
}

func TestSeed(t *testing.T) {
	rng := NewRNG(1234)
	assert.Equal(t, int64(1234), rng.Seed())
}

func TestGenerateGaussianVectors(t *testing.T) {
	rng := NewRNG(42)

	v := rng.GenerateGaussianVectors(16, 8)

	assert.Equal(t, 16, len(v))
	assert.Equal(t, 8, len(v[0]))

	// Gaussian samples should span both sides of zero over enough draws.
	var sawNegative, sawPositive bool
	for _, vec := range v {
		for _, x := range vec {
			if x < 0 {
				sawNegative = true
			}
			if x > 0 {
				sawPositive = true
			}
		}
	}
	assert.True(t, sawNegative)
	assert.True(t, sawPositive)
}

func TestPermutation(t *testing.T) {
	rng := NewRNG(7)

	p := rng.Permutation(10)
	assert.Len(t, p, 10)

	seen := make(map[int]bool, 10)
	for _, v := range p {
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 10)
		assert.False(t, seen[v], "permutation must not repeat indices")
		seen[v] = true
	}
	assert.Len(t, seen, 10)
}

func TestShuffle(t *testing.T) {
	rng := NewRNG(7)

	data := []int{0, 1, 2, 3, 4, 5, 6, 7}
	rng.Shuffle(len(data), func(i, j int) {
		data[i], data[j] = data[j], data[i]
	})

	seen := make(map[int]bool, len(data))
	for _, v := range data {
		seen[v] = true
	}
	assert.Len(t, seen, 8, "shuffle must be a permutation, not a resample")
}

func TestIntN(t *testing.T) {
	rng := NewRNG(99)

	for i := 0; i < 100; i++ {
		v := rng.IntN(5)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 5)
	}
}
