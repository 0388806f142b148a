package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrValidation          = errors.New("invalid input")
	ErrConflict            = errors.New("conflict")
	ErrNotConfigured       = errors.New("avatar profile not configured")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrProviderRejected    = errors.New("provider rejected request")
	ErrMalformedPayload    = errors.New("malformed payload")
)
