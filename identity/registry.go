package identity

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Config holds matcher tunables.
type Config struct {
	// Threshold is the minimum cosine similarity for a match.
	Threshold float64

	// Dimensions is the expected embedding length. Zero disables the
	// length check (the first registered embedding sets the norm).
	Dimensions int
}

// DefaultConfig matches a FaceNet-style 512-d extractor.
func DefaultConfig() Config {
	return Config{Threshold: 0.6, Dimensions: 512}
}

// Validate rejects configurations the matcher cannot run with.
func (c Config) Validate() error {
	if c.Threshold <= 0 || c.Threshold > 1 {
		return fmt.Errorf("identity: Threshold must be in (0, 1], got %v", c.Threshold)
	}
	if c.Dimensions < 0 {
		return fmt.Errorf("identity: Dimensions must not be negative, got %d", c.Dimensions)
	}
	return nil
}

type entry struct {
	name      string
	embedding []float32
}

// MemoryRegistry is the in-memory Registry. Entries keep registration
// order, which makes the exact-tie break deterministic: the
// first-registered name wins.
//
// Not goroutine-safe on its own; the engine serializes access the same
// way it does for scene memory.
type MemoryRegistry struct {
	cfg     Config
	log     *zap.Logger
	entries []entry
	index   map[string]int
}

// NewMemoryRegistry constructs an empty registry.
func NewMemoryRegistry(cfg Config, log *zap.Logger) (*MemoryRegistry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &MemoryRegistry{
		cfg:   cfg,
		log:   log.Named("identity"),
		index: make(map[string]int),
	}, nil
}

// Register inserts or overwrites the entry for name. Overwriting keeps
// the name's original registration position.
func (r *MemoryRegistry) Register(_ context.Context, name string, embedding []float32) error {
	if name == "" {
		return fmt.Errorf("identity: register requires a name")
	}
	if len(embedding) == 0 {
		return fmt.Errorf("identity: register %q: empty embedding", name)
	}
	if r.cfg.Dimensions > 0 && len(embedding) != r.cfg.Dimensions {
		return fmt.Errorf("identity: register %q: embedding has %d dimensions, want %d",
			name, len(embedding), r.cfg.Dimensions)
	}

	stored := make([]float32, len(embedding))
	copy(stored, embedding)

	if i, ok := r.index[name]; ok {
		r.entries[i].embedding = stored
		r.log.Info("re-registered face", zap.String("name", name))
		return nil
	}
	r.index[name] = len(r.entries)
	r.entries = append(r.entries, entry{name: name, embedding: stored})
	r.log.Info("registered face", zap.String("name", name), zap.Int("enrolled", len(r.entries)))
	return nil
}

// Lookup returns the best match strictly above the threshold. An empty
// registry or a degenerate query is a miss.
func (r *MemoryRegistry) Lookup(_ context.Context, embedding []float32) (Match, bool) {
	if len(r.entries) == 0 || len(embedding) == 0 {
		return Match{}, false
	}

	best := Match{Similarity: -1}
	for _, ent := range r.entries {
		// Strictly greater keeps the first-registered entry on exact ties.
		if sim := Cosine(embedding, ent.embedding); sim > best.Similarity {
			best = Match{Name: ent.name, Similarity: sim}
		}
	}
	if best.Similarity <= r.cfg.Threshold {
		return Match{}, false
	}
	return best, true
}

// Names lists enrolled names in registration order.
func (r *MemoryRegistry) Names() []string {
	names := make([]string, len(r.entries))
	for i, ent := range r.entries {
		names[i] = ent.name
	}
	return names
}

// Close is a no-op for the in-memory registry.
func (r *MemoryRegistry) Close() error {
	return nil
}
