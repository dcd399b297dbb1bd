package domain

import "time"

// RateLimitVerdict is the outcome of one rate-limit consultation.
// Limit and Remaining are zero when limiting is degraded or disabled.
type RateLimitVerdict struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAtMs int64
}

// OpenVerdict is reported when no counter store could be consulted.
func OpenVerdict() RateLimitVerdict {
	return RateLimitVerdict{Allowed: true}
}

// RetryAfter returns whole seconds until the window resets, never less than 1.
func (v RateLimitVerdict) RetryAfter(now time.Time) int {
	ms := v.ResetAtMs - now.UnixMilli()
	secs := int((ms + 999) / 1000)
	if secs < 1 {
		return 1
	}
	return secs
}
