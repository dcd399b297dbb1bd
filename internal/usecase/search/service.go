package search

import (
	"context"
	"fmt"
	"time"

	domsearch "github.com/kailas-cloud/imitune/internal/domain/search"
	"github.com/kailas-cloud/imitune/internal/metrics"
)

// Service resolves validated embeddings to their closest sounds.
type Service struct {
	index Index
}

// New creates a search service.
func New(index Index) *Service {
	return &Service{index: index}
}

// Search returns at most TopK matches in the index's native ranking order.
func (s *Service) Search(ctx context.Context, q domsearch.Query) ([]domsearch.Match, error) {
	start := time.Now()
	matches, err := s.index.Query(ctx, q.Embedding(), domsearch.TopK)
	metrics.CollaboratorDuration.WithLabelValues("vector_index", metrics.StatusLabel(err)).
		Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("query vector index: %w", err)
	}

	if len(matches) > domsearch.TopK {
		matches = matches[:domsearch.TopK]
	}
	return matches, nil
}
