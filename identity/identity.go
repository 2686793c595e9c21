// Package identity matches face embeddings against a registry of enrolled
// people and gates the companion's personalized behavior.
//
// Embeddings are fixed-length vectors produced by an external extractor;
// this package never computes them, it only stores and compares. Matching
// is cosine similarity with a fixed threshold; a miss is a normal result,
// not an error.
package identity

import (
	"context"
	"math"
)

// Match is a successful registry lookup.
type Match struct {
	Name       string
	Similarity float64
}

// Registry stores name→embedding entries for enrolled people. Multiple
// distinct names coexist; registering an existing name overwrites its
// embedding in place.
//
// Implementations: MemoryRegistry (reference semantics, used by the
// engine), chromem store (persistent).
type Registry interface {
	// Register inserts or overwrites the entry for name.
	Register(ctx context.Context, name string, embedding []float32) error

	// Lookup returns the best match above the similarity threshold, or
	// false. Degenerate queries (nil, zero-length, dimension mismatch)
	// are misses, never failures.
	Lookup(ctx context.Context, embedding []float32) (Match, bool)

	// Close releases resources.
	Close() error
}

// Embedder converts a preprocessed face crop into an embedding vector.
// Implementations: mock (testing), onnx (local FaceNet-style model).
type Embedder interface {
	// Embed converts one normalized RGB crop tensor to an embedding.
	Embed(ctx context.Context, pixels []float32) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// Cosine returns the cosine similarity of two vectors, or 0 when either
// is empty, zero, or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
