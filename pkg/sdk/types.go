package imitune

import (
	"context"

	domfeedback "github.com/kailas-cloud/imitune/internal/domain/feedback"
)

// Match is one nearest-neighbour sound.
type Match struct {
	ID           string
	Score        float64
	FreesoundURL string // empty when the index has no URL for the sound
}

// Rating is a verdict on one returned sound.
type Rating = domfeedback.Rating

// Ratings.
const (
	RatingLike    = domfeedback.RatingLike
	RatingDislike = domfeedback.RatingDislike
	RatingNone    = domfeedback.RatingNone
)

// Feedback is one submission. Set exactly one of AudioDataURL (a new
// recording as a data: URL) or AudioID (re-rating an earlier recording).
type Feedback struct {
	AudioDataURL string
	AudioID      string
	URLs         []string
	Ratings      []Rating
}

// FeedbackResult locates the stored objects. AudioURL is empty for updates.
type FeedbackResult struct {
	AudioID     string
	AudioURL    string
	MetadataURL string
	IsUpdate    bool
}

// Index is a vector index returning the nearest sounds to an embedding.
type Index interface {
	Query(ctx context.Context, vector []float64, topK int) ([]Match, error)
}

// BlobStore writes one named object and returns its public URL.
type BlobStore interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// HealthStatus represents the aggregated component health.
type HealthStatus struct {
	Status string            // "ok", "degraded"
	Checks map[string]string // component → "ok"/"error"
}
