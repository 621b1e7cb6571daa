package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Settings is the immutable signing configuration of an Engine.
type Settings struct {
	Secret          []byte
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// MinSecretLength is the shortest HMAC key accepted, matching the HS512
// block of 256 bits.
const MinSecretLength = 32

func (s Settings) Validate() error {
	if len(s.Secret) < MinSecretLength {
		return fmt.Errorf("signing secret must be at least %d bytes, got %d", MinSecretLength, len(s.Secret))
	}
	if s.AccessTokenTTL <= 0 {
		return fmt.Errorf("access token lifetime must be positive")
	}
	if s.RefreshTokenTTL <= 0 {
		return fmt.Errorf("refresh token lifetime must be positive")
	}
	return nil
}

// AccessClaims are the claims of an access token. Authorities is the
// comma-joined list of granted roles.
type AccessClaims struct {
	jwt.RegisteredClaims
	Authorities            string `json:"auth"`
	AdditionalInfoProvided bool   `json:"isAdditionalInfoProvided"`
}

// AuthorityList splits Authorities, dropping empty entries.
func (c *AccessClaims) AuthorityList() []string {
	var out []string
	for _, a := range strings.Split(c.Authorities, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// Principal is an authenticated member as seen by request handlers.
type Principal struct {
	UserID                 string
	Subject                string
	Authorities            []string
	AdditionalInfoProvided bool
}
