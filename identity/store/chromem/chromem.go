// Package chromem backs the identity registry with chromem-go, an
// embedded pure-Go vector database, so enrollments survive restarts.
package chromem

import (
	"context"
	"fmt"
	"strconv"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/jay7-tech/memo-go/identity"
)

const collectionName = "faces"

// Registry stores one document per enrolled name, with the face
// embedding as the document vector. Lookup is a cosine top-1 query.
type Registry struct {
	cfg identity.Config
	log *zap.Logger
	db  *chromem.DB
	col *chromem.Collection
}

// New opens a registry at path. An empty path keeps everything in memory
// (useful for tests); otherwise enrollments persist on disk.
func New(path string, cfg identity.Config, log *zap.Logger) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	var db *chromem.DB
	var err error
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("open identity database: %w", err)
		}
	}

	// No embedding func: callers always provide vectors. Default distance
	// is cosine, which is exactly the matching policy.
	col, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create faces collection: %w", err)
	}

	return &Registry{
		cfg: cfg,
		log: log.Named("chromem"),
		db:  db,
		col: col,
	}, nil
}

// Register inserts or overwrites the entry for name.
func (r *Registry) Register(ctx context.Context, name string, embedding []float32) error {
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

	// Same document ID means overwrite; drop any previous enrollment
	// first so re-registering a face updates it.
	if err := r.col.Delete(ctx, nil, nil, name); err != nil {
		r.log.Debug("no previous enrollment to replace", zap.String("name", name), zap.Error(err))
	}

	doc := chromem.Document{
		ID:        name,
		Content:   name,
		Embedding: embedding,
		Metadata: map[string]string{
			"registered_at": time.Now().Format(time.RFC3339),
			"dimensions":    strconv.Itoa(len(embedding)),
		},
	}
	if err := r.col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("store enrollment for %q: %w", name, err)
	}
	r.log.Info("registered face", zap.String("name", name), zap.Int("enrolled", r.col.Count()))
	return nil
}

// Lookup returns the closest enrolled name strictly above the threshold.
func (r *Registry) Lookup(ctx context.Context, embedding []float32) (identity.Match, bool) {
	if len(embedding) == 0 || r.col.Count() == 0 {
		return identity.Match{}, false
	}
	if r.cfg.Dimensions > 0 && len(embedding) != r.cfg.Dimensions {
		return identity.Match{}, false
	}

	results, err := r.col.QueryEmbedding(ctx, embedding, 1, nil, nil)
	if err != nil {
		r.log.Warn("identity query failed", zap.Error(err))
		return identity.Match{}, false
	}
	if len(results) == 0 {
		return identity.Match{}, false
	}

	best := results[0]
	sim := float64(best.Similarity)
	if sim <= r.cfg.Threshold {
		return identity.Match{}, false
	}
	return identity.Match{Name: best.ID, Similarity: sim}, true
}

// Close releases resources. chromem keeps its state on disk already;
// nothing to flush.
func (r *Registry) Close() error {
	return nil
}
