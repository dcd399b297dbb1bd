// Package admission runs the shared gate every endpoint passes before any
// payload is read: origin policy, preflight, method check, rate limit.
package admission

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/imitune/internal/domain"
	"github.com/kailas-cloud/imitune/internal/domain/origin"
	"github.com/kailas-cloud/imitune/internal/logger"
	"github.com/kailas-cloud/imitune/internal/metrics"
)

// Outcome is the admission verdict kind.
type Outcome int

const (
	// Continue lets the handler read and validate the payload.
	Continue Outcome = iota
	// Preflight ends the request with 204 and no body.
	Preflight
	// Rejected ends the request with Result.Status and Result.Reason.
	Rejected
)

// Rejection reasons returned to the caller.
const (
	ReasonOriginNotAllowed = "Origin not allowed"
	ReasonMethodNotAllowed = "Method Not Allowed"
	ReasonRateLimited      = "Too many requests. Please try again later."
)

// UnknownClientIP is used when no address can be derived from the request.
const UnknownClientIP = "unknown"

// Request is the transport-neutral view of an inbound request.
type Request struct {
	Method       string
	Origin       string
	ForwardedFor string
	RealIP       string
	RemoteAddr   string
}

// Result is the admission outcome plus everything the transport must echo.
// RateLimit is nil unless the rate limiter stage was reached.
type Result struct {
	Outcome    Outcome
	Status     int
	Reason     string
	RetryAfter int
	Origin     origin.Decision
	RateLimit  *domain.RateLimitVerdict
	ClientIP   string
}

// Gate composes origin policy, method gating and rate limiting.
type Gate struct {
	origins OriginPolicy
	limiter RateLimiter
	now     func() time.Time
	logger  *zap.Logger
}

// New creates a Gate. limiter may be nil, in which case every request is
// admitted in degraded mode.
func New(origins OriginPolicy, limiter RateLimiter, logger *zap.Logger) *Gate {
	return &Gate{origins: origins, limiter: limiter, now: time.Now, logger: logger}
}

// WithClock overrides the time source used for retry-after computation.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Admit runs the stages in order, short-circuiting on the first terminal one.
// Preflight never reaches the rate limiter.
func (g *Gate) Admit(ctx context.Context, req Request, endpoint domain.Endpoint, method string) Result {
	log := logger.FromContext(ctx)
	res := Result{Origin: g.origins.Decide(req.Origin)}

	if req.Method == http.MethodOptions {
		res.Outcome = Preflight
		res.Status = http.StatusNoContent
		g.record(endpoint, "preflight")
		return res
	}

	if !res.Origin.Allowed {
		log.Warn("Blocked request from unauthorized origin",
			zap.String("endpoint", endpoint.String()),
			zap.String("origin", originLabel(req.Origin)),
		)
		g.record(endpoint, "origin_denied")
		return reject(res, http.StatusForbidden, ReasonOriginNotAllowed)
	}

	if req.Method != method {
		g.record(endpoint, "method_denied")
		return reject(res, http.StatusMethodNotAllowed, ReasonMethodNotAllowed)
	}

	res.ClientIP = ClientIP(req)

	verdict := g.consult(ctx, endpoint, res.ClientIP)
	res.RateLimit = &verdict

	if !verdict.Allowed {
		log.Info("Rate limit exceeded",
			zap.String("endpoint", endpoint.String()),
			zap.String("ip", res.ClientIP),
		)
		g.record(endpoint, "rate_limited")
		res = reject(res, http.StatusTooManyRequests, ReasonRateLimited)
		res.RetryAfter = verdict.RetryAfter(g.now())
		return res
	}

	log.Debug("Request admitted",
		zap.String("endpoint", endpoint.String()),
		zap.String("ip", res.ClientIP),
		zap.Int("remaining", verdict.Remaining),
		zap.Int("limit", verdict.Limit),
	)
	g.record(endpoint, "continue")
	res.Outcome = Continue
	return res
}

// consult asks the rate limiter, failing open when it is missing or erroring.
func (g *Gate) consult(ctx context.Context, endpoint domain.Endpoint, ip string) domain.RateLimitVerdict {
	if g.limiter == nil {
		g.logger.Warn("Rate limiter not configured, allowing request",
			zap.String("endpoint", endpoint.String()),
		)
		metrics.RateLimitDegradedTotal.WithLabelValues(endpoint.String(), "unconfigured").Inc()
		return domain.OpenVerdict()
	}

	start := time.Now()
	verdict, err := g.limiter.Limit(ctx, endpoint, ip)
	metrics.CollaboratorDuration.WithLabelValues("ratelimit", metrics.StatusLabel(err)).
		Observe(time.Since(start).Seconds())
	if err != nil {
		logger.FromContext(ctx).Warn("Rate limiter unavailable, allowing request",
			zap.String("endpoint", endpoint.String()),
			zap.Error(err),
		)
		metrics.RateLimitDegradedTotal.WithLabelValues(endpoint.String(), "error").Inc()
		return domain.OpenVerdict()
	}
	return verdict
}

func (g *Gate) record(endpoint domain.Endpoint, outcome string) {
	metrics.AdmissionDecisionsTotal.WithLabelValues(endpoint.String(), outcome).Inc()
}

func reject(res Result, status int, reason string) Result {
	res.Outcome = Rejected
	res.Status = status
	res.Reason = reason
	return res
}

// ClientIP picks the first X-Forwarded-For entry, then X-Real-IP, then the
// transport address (port stripped), then UnknownClientIP.
func ClientIP(req Request) string {
	if req.ForwardedFor != "" {
		first, _, _ := strings.Cut(req.ForwardedFor, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(req.RealIP); ip != "" {
		return ip
	}
	if req.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(req.RemoteAddr); err == nil {
			return host
		}
		return req.RemoteAddr
	}
	return UnknownClientIP
}

func originLabel(o string) string {
	if o == "" {
		return "none"
	}
	return o
}
