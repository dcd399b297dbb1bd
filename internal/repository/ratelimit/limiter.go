package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/imitune/internal/db"
	"github.com/kailas-cloud/imitune/internal/domain"
)

// DefaultPrefix namespaces limiter keys.
const DefaultPrefix = "imitune:ratelimit"

// store is the consumer interface for counter operations (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Rule is the request budget for one endpoint class.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Limiter is a weighted two-window sliding counter.
//
// Each window has its own counter key. The previous window's count is
// weighted by the share of it still covered by the sliding window, so the
// effective count decays smoothly instead of resetting at window edges.
// Denied requests are counted as well.
type Limiter struct {
	store  store
	prefix string
	rules  map[domain.Endpoint]Rule
	now    func() time.Time
}

// New creates a limiter. An empty prefix falls back to DefaultPrefix.
func New(s store, prefix string, rules map[domain.Endpoint]Rule) *Limiter {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Limiter{store: s, prefix: prefix, rules: rules, now: time.Now}
}

// WithClock overrides the time source.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Limit records one request for identifier and returns the verdict.
// Store failures wrap domain.ErrRateLimiterUnavailable; the caller decides whether to fail open.
func (l *Limiter) Limit(ctx context.Context, endpoint domain.Endpoint, identifier string) (domain.RateLimitVerdict, error) {
	if !endpoint.IsValid() {
		return domain.RateLimitVerdict{}, fmt.Errorf("unknown endpoint %q", endpoint)
	}
	rule, ok := l.rules[endpoint]
	if !ok || rule.Limit <= 0 || rule.Window <= 0 {
		return domain.RateLimitVerdict{}, fmt.Errorf("no rate limit rule for %q", endpoint)
	}

	windowMs := rule.Window.Milliseconds()
	nowMs := l.now().UnixMilli()
	idx := nowMs / windowMs

	curKey := l.key(endpoint, identifier, idx)
	cur, err := l.store.IncrBy(ctx, curKey, 1)
	if err != nil {
		return domain.RateLimitVerdict{}, fmt.Errorf("%w: INCRBY %s: %w", domain.ErrRateLimiterUnavailable, curKey, err)
	}
	// TTL covers the window plus the one after it, where it is read as "previous".
	if err := l.store.Expire(ctx, curKey, 2*rule.Window, true); err != nil {
		return domain.RateLimitVerdict{}, fmt.Errorf("%w: PEXPIRE %s: %w", domain.ErrRateLimiterUnavailable, curKey, err)
	}

	prevKey := l.key(endpoint, identifier, idx-1)
	prev, err := l.count(ctx, prevKey)
	if err != nil {
		return domain.RateLimitVerdict{}, err
	}

	elapsed := nowMs - idx*windowMs
	remainingFraction := float64(windowMs-elapsed) / float64(windowMs)
	weighted := int(float64(prev)*remainingFraction) + int(cur)

	return domain.RateLimitVerdict{
		Allowed:   weighted <= rule.Limit,
		Limit:     rule.Limit,
		Remaining: max(0, rule.Limit-weighted),
		ResetAtMs: (idx + 1) * windowMs,
	}, nil
}

func (l *Limiter) count(ctx context.Context, key string) (int64, error) {
	data, err := l.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: GET %s: %w", domain.ErrRateLimiterUnavailable, key, err)
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("ratelimit GET %s parse: %w", key, err)
	}
	return n, nil
}

func (l *Limiter) key(endpoint domain.Endpoint, identifier string, idx int64) string {
	return fmt.Sprintf("%s:%s:%s:%d", l.prefix, endpoint, identifier, idx)
}
