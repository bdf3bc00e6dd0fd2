package gateway

import "errors"

// Sentinel errors for the gateway domain.
var (
	ErrUnauthorized  = errors.New("missing api key")
	ErrBadRequest    = errors.New("bad request")
	ErrNotFound      = errors.New("not found")
	ErrRateLimited   = errors.New("rate limited")
	ErrQuotaExceeded = errors.New("daily quota exceeded")
	ErrProviderError = errors.New("provider error")
	ErrStorage       = errors.New("storage error")
)
