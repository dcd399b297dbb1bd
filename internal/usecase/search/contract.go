package search

import (
	"context"

	domsearch "github.com/kailas-cloud/imitune/internal/domain/search"
)

// Index is the external vector index queried for nearest neighbours.
type Index interface {
	Query(ctx context.Context, vector []float64, topK int) ([]domsearch.Match, error)
}
