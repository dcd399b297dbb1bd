// Package feedback validates user feedback submissions and shapes the stored record.
package feedback

import (
	"github.com/google/uuid"

	"github.com/kailas-cloud/imitune/internal/domain"
)

// Request body field names.
const (
	FieldAudioQuery = "audioQuery"
	FieldAudioID    = "audioId"
	FieldURLs       = "freesound_urls"
	FieldRatings    = "ratings"
)

// Submission is a validated feedback payload. Exactly one of Audio and
// AudioID is set; an AudioID marks the submission as an update.
type Submission struct {
	audio      *Audio
	audioID    string
	targetURLs []string
	ratings    []Rating
}

// ParseSubmission validates a decoded request body. Checks run in order and
// the first violation wins.
func ParseSubmission(body map[string]any) (Submission, error) {
	audioRaw, hasAudio := present(body, FieldAudioQuery)
	idRaw, hasID := present(body, FieldAudioID)
	urlsRaw, hasURLs := present(body, FieldURLs)
	ratingsRaw, hasRatings := present(body, FieldRatings)

	if hasAudio && hasID {
		return Submission{}, domain.Invalid("Provide either audioQuery or audioId, not both")
	}
	if (!hasAudio && !hasID) || !hasURLs || !hasRatings {
		return Submission{}, domain.Invalid(
			"Missing required fields: audioQuery or audioId, freesound_urls, ratings",
		)
	}

	urlItems, urlsOK := urlsRaw.([]any)
	ratingItems, ratingsOK := ratingsRaw.([]any)
	if !urlsOK || !ratingsOK {
		return Submission{}, domain.Invalid("freesound_urls and ratings must be arrays")
	}
	if len(urlItems) != len(ratingItems) {
		return Submission{}, domain.Invalid("freesound_urls and ratings arrays must have the same length")
	}

	urls := make([]string, len(urlItems))
	for i, u := range urlItems {
		s, ok := u.(string)
		if !ok {
			return Submission{}, domain.Invalid("Each freesound_url must be a string")
		}
		urls[i] = s
	}

	ratings := make([]Rating, len(ratingItems))
	for i, r := range ratingItems {
		rating, ok := parseRating(r)
		if !ok {
			return Submission{}, domain.Invalid(`Each rating must be either "like", "dislike", or null`)
		}
		ratings[i] = rating
	}

	sub := Submission{targetURLs: urls, ratings: ratings}

	if hasID {
		id, ok := idRaw.(string)
		if !ok {
			return Submission{}, domain.Invalid("audioId must be a valid UUID")
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return Submission{}, domain.Invalid("audioId must be a valid UUID")
		}
		sub.audioID = parsed.String()
		return sub, nil
	}

	audio, err := ParseAudio(audioRaw)
	if err != nil {
		return Submission{}, err
	}
	sub.audio = &audio
	return sub, nil
}

// present reports whether key holds a usable value: absent, null and empty
// strings count as missing.
func present(body map[string]any, key string) (any, bool) {
	v, ok := body[key]
	if !ok || v == nil {
		return nil, false
	}
	if s, isString := v.(string); isString && s == "" {
		return nil, false
	}
	return v, true
}

// IsUpdate reports whether the submission references previously stored audio.
func (s *Submission) IsUpdate() bool { return s.audio == nil }

// Audio returns the decoded recording (nil for updates).
func (s *Submission) Audio() *Audio { return s.audio }

// AudioID returns the referenced audio identifier (empty for new submissions).
func (s *Submission) AudioID() string { return s.audioID }

// TargetURLs returns the rated sound URLs.
func (s *Submission) TargetURLs() []string { return s.targetURLs }

// Ratings returns ratings aligned with TargetURLs.
func (s *Submission) Ratings() []Rating { return s.ratings }
