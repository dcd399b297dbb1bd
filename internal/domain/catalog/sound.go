// Package catalog models the indexed sound collection and its on-disk exports.
package catalog

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/imitune/internal/domain"
	domsearch "github.com/kailas-cloud/imitune/internal/domain/search"
)

// FieldFreesoundURL is the metadata key holding a sound's public page.
const FieldFreesoundURL = "freesound_url"

// Sound is one indexed embedding.
type Sound struct {
	ID           string
	Embedding    []float32
	FreesoundURL string
}

// FormatID renders the 1-based position of a sound in its export as the
// zero-padded twelve digit index ID.
func FormatID(seq int) string {
	return fmt.Sprintf("%012d", seq)
}

// Validate checks the sound against the bounds the search endpoint accepts.
func (s *Sound) Validate() error {
	if s.ID == "" {
		return domain.Invalid("sound id is required")
	}
	if n := len(s.Embedding); n < domsearch.MinDimensions || n > domsearch.MaxDimensions {
		return domain.Invalid("sound %s: embedding has %d dimensions (expected %d-%d)",
			s.ID, n, domsearch.MinDimensions, domsearch.MaxDimensions)
	}
	for _, f := range s.Embedding {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return domain.Invalid("sound %s: embedding contains non-finite values", s.ID)
		}
	}
	return nil
}

// Metadata is the per-vector metadata stored next to the embedding.
func (s *Sound) Metadata() map[string]string {
	return map[string]string{FieldFreesoundURL: s.FreesoundURL}
}
