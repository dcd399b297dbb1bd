package imitune

import "github.com/kailas-cloud/imitune/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrValidation         = domain.ErrValidation
	ErrPayloadTooLarge    = domain.ErrPayloadTooLarge
	ErrIndexNotConfigured = domain.ErrIndexNotConfigured
	ErrIndexUnavailable   = domain.ErrIndexUnavailable
	ErrBlobWrite          = domain.ErrBlobWrite
)
