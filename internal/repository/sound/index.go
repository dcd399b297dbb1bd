package sound

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/imitune/internal/db"
	"github.com/kailas-cloud/imitune/internal/domain/catalog"
	domsearch "github.com/kailas-cloud/imitune/internal/domain/search"
)

// FieldFreesoundURL is the hash field holding the sound's public page.
const FieldFreesoundURL = catalog.FieldFreesoundURL

// store is the consumer interface for vector search (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	Ping(ctx context.Context) error
}

// Config describes the Redis search index holding sound embeddings.
type Config struct {
	IndexName   string
	KeyPrefix   string // stripped from document keys to form match IDs
	VectorField string
}

// Index implements usecase/search.Index over a Redis FT index.
type Index struct {
	store store
	cfg   Config
}

// New creates a sound index.
func New(s store, cfg Config) *Index {
	return &Index{store: s, cfg: cfg}
}

// Query returns the topK nearest sounds to vector.
func (i *Index) Query(ctx context.Context, vector []float64, topK int) ([]domsearch.Match, error) {
	sr, err := i.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    i.cfg.IndexName,
		VectorField:  i.cfg.VectorField,
		Vector:       domsearch.Float32(vector),
		K:            topK,
		ReturnFields: []string{FieldFreesoundURL},
	})
	if err != nil {
		return nil, fmt.Errorf("search knn %s: %w", i.cfg.IndexName, err)
	}

	matches := make([]domsearch.Match, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		matches = append(matches, domsearch.Match{
			ID:           strings.TrimPrefix(e.Key, i.cfg.KeyPrefix),
			Score:        e.Score,
			FreesoundURL: e.Fields[FieldFreesoundURL],
		})
	}
	return matches, nil
}

// HealthCheck pings the Redis server holding the index.
func (i *Index) HealthCheck(ctx context.Context) error {
	if err := i.store.Ping(ctx); err != nil {
		return fmt.Errorf("sound index health: %w", err)
	}
	return nil
}
