// Package search holds the validated nearest-neighbour query and its matches.
package search

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/kailas-cloud/imitune/internal/domain"
)

// Query bounds.
const (
	MinDimensions = 32
	MaxDimensions = 2048
	// TopK is the fixed number of neighbours returned per query.
	TopK = 3
)

// Query is a validated embedding ready for the vector index.
type Query struct {
	embedding []float64
}

// ParseQuery validates the decoded "embedding" field of a request body.
// raw is nil when the field is absent. Elements may be json.Number (decoder
// UseNumber) or float64; anything else is rejected.
func ParseQuery(raw any) (Query, error) {
	items, ok := raw.([]any)
	if !ok {
		return Query{}, domain.Invalid("Missing or invalid embedding vector")
	}

	if len(items) < MinDimensions || len(items) > MaxDimensions {
		return Query{}, domain.Invalid(
			"Invalid embedding size. Expected between %d and %d, got %d",
			MinDimensions, MaxDimensions, len(items),
		)
	}

	vec := make([]float64, len(items))
	for i, item := range items {
		f, ok := finite(item)
		if !ok {
			return Query{}, domain.Invalid("Embedding contains invalid values (must be finite numbers)")
		}
		vec[i] = f
	}

	return Query{embedding: vec}, nil
}

// NewQuery validates an already-typed embedding.
func NewQuery(embedding []float64) (Query, error) {
	items := make([]any, len(embedding))
	for i, f := range embedding {
		items[i] = f
	}
	return ParseQuery(items)
}

func finite(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := strconv.ParseFloat(string(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Embedding returns the query vector.
func (q Query) Embedding() []float64 { return q.embedding }

// Float32 narrows a vector for binary FLOAT32 index encodings.
func Float32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
