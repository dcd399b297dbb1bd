package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation signals a structurally invalid or out-of-bounds payload.
	ErrValidation = errors.New("validation failed")
	// ErrPayloadTooLarge signals a payload above its size ceiling.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrIndexNotConfigured signals missing vector index credentials or host.
	ErrIndexNotConfigured = errors.New("vector index not configured")
	// ErrIndexUnavailable signals a failed or rejected vector index query.
	ErrIndexUnavailable = errors.New("vector index unavailable")
	// ErrBlobWrite signals a failed blob store write.
	ErrBlobWrite = errors.New("blob write failed")
	// ErrRateLimiterUnavailable signals an unreachable rate-limit counter store.
	ErrRateLimiterUnavailable = errors.New("rate limiter unavailable")
)

// ValidationError is a client-facing payload rejection.
// Message is safe to return verbatim; Kind is ErrValidation or ErrPayloadTooLarge.
type ValidationError struct {
	Kind    error
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return e.Kind }

// Invalid builds an ErrValidation rejection.
func Invalid(format string, args ...any) error {
	return &ValidationError{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

// TooLarge builds an ErrPayloadTooLarge rejection.
func TooLarge(format string, args ...any) error {
	return &ValidationError{Kind: ErrPayloadTooLarge, Message: fmt.Sprintf(format, args...)}
}
