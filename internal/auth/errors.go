package auth

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("auth: not found")
	ErrConflict        = errors.New("auth: conflict")
	ErrInvalidInput    = errors.New("auth: invalid input")
	ErrUnauthenticated = errors.New("auth: unauthenticated")
	ErrForbidden       = errors.New("auth: forbidden")
)

// Reasons surfaced by the access guard and the token endpoints. Each wraps
// one of the categories above so callers can branch on either.
var (
	ErrMissingToken       = fmt.Errorf("%w: missing token", ErrUnauthenticated)
	ErrInvalidToken       = fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthenticated)
	ErrInsufficientScope  = fmt.Errorf("%w: insufficient token scope", ErrForbidden)
	ErrAccessDenied       = fmt.Errorf("%w: access denied", ErrForbidden)
	ErrInvalidScope       = fmt.Errorf("%w: invalid scope", ErrInvalidInput)
	ErrInvalidGrant       = fmt.Errorf("%w: invalid grant", ErrInvalidInput)
	ErrLoginTaken         = fmt.Errorf("%w: login already taken", ErrConflict)
)
