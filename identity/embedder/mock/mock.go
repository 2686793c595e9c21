// Package mock provides a deterministic face embedder for tests and
// camera-less runs.
package mock

import (
	"context"
	"encoding/binary"
	"hash/fnv"
	"math"
)

// Embedder generates deterministic embeddings from a hash of the crop,
// so the same face crop always maps to the same vector. There is no real
// facial similarity, which is good enough for wiring and tests.
type Embedder struct {
	dimensions int
}

// New creates a mock embedder matching FaceNet's 512 dimensions.
func New() *Embedder {
	return &Embedder{dimensions: 512}
}

// Embed creates a deterministic embedding from the crop tensor.
func (m *Embedder) Embed(_ context.Context, pixels []float32) ([]float32, error) {
	h := fnv.New64a()
	var buf [4]byte
	for _, px := range pixels {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(px))
		h.Write(buf[:])
	}
	seed := h.Sum64()

	embedding := make([]float32, m.dimensions)
	for i := 0; i < m.dimensions; i++ {
		// Simple LCG keeps the output stable across runs.
		seed = seed*6364136223846793005 + 1442695040888963407
		embedding[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return normalize(embedding), nil
}

// Dimensions returns the embedding size.
func (m *Embedder) Dimensions() int {
	return m.dimensions
}

// normalize converts the embedding to a unit vector.
func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = v / norm
	}
	return normalized
}
