package sound

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/imitune/internal/db"
	"github.com/kailas-cloud/imitune/internal/domain/catalog"
)

// HNSW build parameters for the sound index.
const (
	defaultHNSWM              = 16
	defaultHNSWEFConstruction = 200
)

// writeStore is the consumer interface for index maintenance (ISP).
type writeStore interface {
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	CountDocs(ctx context.Context, name string) (int64, error)
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	Del(ctx context.Context, keys ...string) (int64, error)
}

// Writer implements usecase/ingest.Sink over a Redis FT index. Each sound is
// a hash at KeyPrefix+ID holding the FLOAT32 vector and its freesound_url.
type Writer struct {
	store writeStore
	cfg   Config
}

// NewWriter creates a sound index writer.
func NewWriter(s writeStore, cfg Config) *Writer {
	return &Writer{store: s, cfg: cfg}
}

func (w *Writer) vectorField() string {
	if w.cfg.VectorField == "" {
		return "vector"
	}
	return w.cfg.VectorField
}

// Definition returns the FT index definition for dims-dimensional embeddings.
func (w *Writer) Definition(dims int) *db.IndexDefinition {
	return &db.IndexDefinition{
		Name:        w.cfg.IndexName,
		StorageType: db.StorageHash,
		Prefixes:    []string{w.cfg.KeyPrefix},
		Fields: []db.IndexField{{
			Name:              w.vectorField(),
			VectorAlgo:        db.VectorHNSW,
			VectorDim:         dims,
			VectorDistance:    db.DistanceCosine,
			VectorM:           defaultHNSWM,
			VectorEFConstruct: defaultHNSWEFConstruction,
		}},
	}
}

// Prepare creates the FT index when it does not exist yet.
func (w *Writer) Prepare(ctx context.Context, dims int) error {
	exists, err := w.store.IndexExists(ctx, w.cfg.IndexName)
	if err != nil {
		return fmt.Errorf("check index %s: %w", w.cfg.IndexName, err)
	}
	if exists {
		return nil
	}
	if err := w.store.CreateIndex(ctx, w.Definition(dims)); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", w.cfg.IndexName, err)
	}
	return nil
}

// Upsert writes one hash per sound in a single round-trip.
func (w *Writer) Upsert(ctx context.Context, sounds []catalog.Sound) error {
	items := make([]db.HashSetItem, len(sounds))
	for i := range sounds {
		items[i] = db.HashSetItem{
			Key: w.cfg.KeyPrefix + sounds[i].ID,
			Fields: map[string]string{
				w.vectorField():   db.VectorBlob(sounds[i].Embedding),
				FieldFreesoundURL: sounds[i].FreesoundURL,
			},
		}
	}
	if err := w.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert %d sounds: %w", len(sounds), err)
	}
	return nil
}

// Delete removes sounds by ID.
func (w *Writer) Delete(ctx context.Context, ids []string) error {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = w.cfg.KeyPrefix + id
	}
	if _, err := w.store.Del(ctx, keys...); err != nil {
		return fmt.Errorf("delete %d sounds: %w", len(ids), err)
	}
	return nil
}

// Count returns the number of indexed sounds.
func (w *Writer) Count(ctx context.Context) (int64, error) {
	n, err := w.store.CountDocs(ctx, w.cfg.IndexName)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", w.cfg.IndexName, err)
	}
	return n, nil
}
