// Package apperror defines the sentinel errors shared across handlers.
package apperror

import "errors"

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("already registered")
	ErrInvalidMedia       = errors.New("invalid media url")
	ErrMediaNotPublic     = errors.New("media url is not publicly reachable")
	ErrUpstream           = errors.New("upstream request failed")
	ErrUpstreamUnavail    = errors.New("upstream unavailable")
)
