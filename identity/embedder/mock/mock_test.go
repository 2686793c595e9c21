package mock

import (
	"context"
	"math"
	"testing"
)

func TestEmbedDeterministic(t *testing.T) {
	emb := New()
	ctx := context.Background()
	crop := []float32{0.1, 0.5, 0.9}

	first, err := emb.Embed(ctx, crop)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	second, err := emb.Embed(ctx, crop)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	if len(first) != emb.Dimensions() {
		t.Fatalf("len = %d, want %d", len(first), emb.Dimensions())
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("embeddings differ at %d: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestEmbedDistinctInputs(t *testing.T) {
	emb := New()
	ctx := context.Background()

	a, _ := emb.Embed(ctx, []float32{0.1, 0.5, 0.9})
	b, _ := emb.Embed(ctx, []float32{0.9, 0.5, 0.1})

	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different crops produced identical embeddings")
	}
}

func TestEmbedUnitNorm(t *testing.T) {
	emb := New()
	vec, err := emb.Embed(context.Background(), []float32{0.3, 0.7})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(norm)-1) > 1e-5 {
		t.Errorf("norm = %v, want 1", math.Sqrt(norm))
	}
}
