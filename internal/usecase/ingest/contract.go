package ingest

import (
	"context"

	"github.com/kailas-cloud/imitune/internal/domain/catalog"
)

// Sink is the vector index being maintained.
type Sink interface {
	// Prepare makes the index ready for dims-dimensional vectors.
	Prepare(ctx context.Context, dims int) error
	Upsert(ctx context.Context, sounds []catalog.Sound) error
	Delete(ctx context.Context, ids []string) error
	Count(ctx context.Context) (int64, error)
}
