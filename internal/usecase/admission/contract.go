package admission

import (
	"context"

	"github.com/kailas-cloud/imitune/internal/domain"
	"github.com/kailas-cloud/imitune/internal/domain/origin"
)

// OriginPolicy decides whether a request origin is allowed.
type OriginPolicy interface {
	Decide(headerOrigin string) origin.Decision
}

// RateLimiter consults the external sliding-window counter for one event.
type RateLimiter interface {
	Limit(ctx context.Context, endpoint domain.Endpoint, identifier string) (domain.RateLimitVerdict, error)
}
