package domain

// Endpoint identifies an API surface for rate limiting and metrics.
type Endpoint string

const (
	// EndpointSearch is the nearest-neighbour query endpoint.
	EndpointSearch Endpoint = "search"
	// EndpointFeedback is the recording + ratings submission endpoint.
	EndpointFeedback Endpoint = "feedback"
)

// IsValid reports whether e is a known endpoint.
func (e Endpoint) IsValid() bool {
	switch e {
	case EndpointSearch, EndpointFeedback:
		return true
	default:
		return false
	}
}

func (e Endpoint) String() string { return string(e) }
