package models

import "time"

// RefreshToken is the single live refresh token of a user. Token holds the
// raw value on the way in; stores persist only its digest.
type RefreshToken struct {
	UserID    string
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
