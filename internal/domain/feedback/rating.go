package feedback

import "encoding/json"

// Rating is a user's verdict on one returned sound. RatingNone encodes as JSON null.
type Rating string

const (
	RatingLike    Rating = "like"
	RatingDislike Rating = "dislike"
	RatingNone    Rating = ""
)

// parseRating accepts "like", "dislike" or null.
func parseRating(v any) (Rating, bool) {
	if v == nil {
		return RatingNone, true
	}
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	switch Rating(s) {
	case RatingLike, RatingDislike:
		return Rating(s), true
	default:
		return "", false
	}
}

// MarshalJSON implements json.Marshaler.
func (r Rating) MarshalJSON() ([]byte, error) {
	if r == RatingNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(r))
}
