package common

const (
	// AuthorizationHeaderName carries the bearer access token on HTTP
	// requests and gRPC metadata.
	AuthorizationHeaderName = "authorization"

	// BearerPrefix precedes the access token in the authorization header.
	BearerPrefix = "Bearer "

	// TokenType is reported to clients alongside every token pair.
	TokenType = "Bearer"

	// RoleUser is granted to every member on creation.
	RoleUser = "ROLE_USER"
)
