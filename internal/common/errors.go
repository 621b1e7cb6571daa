// Package common defines shared constants and sentinel errors used across
// the Kiwes membership server. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Token validation errors.
	ErrMalformedSignature = errors.New("malformed token signature")
	ErrTokenExpired       = errors.New("token expired")
	ErrUnsupportedToken   = errors.New("unsupported token")
	ErrMalformedToken     = errors.New("malformed token")

	// Session errors.
	ErrUnknownSubject      = errors.New("unknown subject")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// Social login errors.
	ErrUnsupportedProvider = errors.New("unsupported provider")
	ErrInvalidCredential   = errors.New("invalid provider credential")
	ErrProviderUnavailable = errors.New("provider unavailable")

	// Member errors.
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNicknameTaken    = errors.New("nickname already taken")
	ErrSignUpCompleted  = errors.New("sign-up already completed")
)

// IsTokenError reports whether err belongs to the access/refresh token
// validation family.
func IsTokenError(err error) bool {
	return errors.Is(err, ErrMalformedSignature) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrUnsupportedToken) ||
		errors.Is(err, ErrMalformedToken)
}
