// Package util provides small helpers shared by tests and examples.
package util

import (
	"math"
	"math/rand"
)

// RNG struct encapsulates the random number generator and seed.
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

// GenerateUnitVectors generates random vectors scaled to unit L2 norm,
// matching the shape of normalized embeddings.
func (r *RNG) GenerateUnitVectors(num int, dimensions int) [][]float32 {
	vectors := r.GenerateRandomVectors(num, dimensions)
	for _, v := range vectors {
		var norm2 float32
		for _, x := range v {
			norm2 += x * x
		}
		if norm2 == 0 {
			v[0] = 1
			continue
		}
		inv := 1 / float32(math.Sqrt(float64(norm2)))
		for j := range v {
			v[j] *= inv
		}
	}
	return vectors
}
