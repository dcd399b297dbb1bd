package search

// Match is a single nearest-neighbour hit.
type Match struct {
	ID           string
	Score        float64
	FreesoundURL string
}
