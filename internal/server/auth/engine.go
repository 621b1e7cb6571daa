// Package auth mints and validates the membership tokens.
//
// Access tokens are HS512 JWTs carrying the member email as subject, the
// granted roles and the sign-up completion flag. Refresh tokens are HS256
// JWTs carrying only an expiry and a random id; which refresh token is
// current for a user is decided by the refresh token store, never by the
// token itself. Kinds are told apart by algorithm, so one can never be
// accepted in place of the other.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/kiwes/internal/common"
	"github.com/dmitrijs2005/kiwes/internal/logging"
	"github.com/dmitrijs2005/kiwes/internal/server/metrics"
	"github.com/dmitrijs2005/kiwes/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	kindAccess  = "access"
	kindRefresh = "refresh"
)

// RefreshStore persists the refresh token of each mint.
type RefreshStore interface {
	Save(ctx context.Context, token *models.RefreshToken) error
}

// SubjectLookup resolves a token subject to an active member.
// Implementations return common.ErrorNotFound when there is none.
type SubjectLookup interface {
	FindBySubject(ctx context.Context, subject string) (*models.User, error)
}

type Engine struct {
	settings Settings
	store    RefreshStore
	subjects SubjectLookup
	logger   logging.Logger
	metrics  metrics.Recorder
	now      func() time.Time
}

// NewEngine validates s and builds an Engine around it. The settings are
// copied and never change afterwards.
func NewEngine(s Settings, store RefreshStore, subjects SubjectLookup, l logging.Logger, m metrics.Recorder) (*Engine, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	secret := make([]byte, len(s.Secret))
	copy(secret, s.Secret)
	s.Secret = secret

	return &Engine{
		settings: s,
		store:    store,
		subjects: subjects,
		logger:   l.With("module", "token_engine"),
		metrics:  m,
		now:      time.Now,
	}, nil
}

// RefreshTokenTTL is the configured refresh lifetime.
func (e *Engine) RefreshTokenTTL() time.Duration {
	return e.settings.RefreshTokenTTL
}

// Mint signs a new access/refresh pair for p and stores the refresh token
// in userID's slot, replacing the previous one.
func (e *Engine) Mint(ctx context.Context, p Principal, userID string) (*models.TokenPair, error) {
	now := e.now()

	access, err := jwt.NewWithClaims(jwt.SigningMethodHS512, AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(e.settings.AccessTokenTTL)),
		},
		Authorities:            strings.Join(p.Authorities, ","),
		AdditionalInfoProvided: p.AdditionalInfoProvided,
	}).SignedString(e.settings.Secret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshExpiry := now.Add(e.settings.RefreshTokenTTL)
	refresh, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(refreshExpiry),
	}).SignedString(e.settings.Secret)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	if err := e.store.Save(ctx, &models.RefreshToken{
		UserID:    userID,
		Token:     refresh,
		IssuedAt:  now,
		ExpiresAt: refreshExpiry,
	}); err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}

	e.metrics.TokenIssued(kindAccess)
	e.metrics.TokenIssued(kindRefresh)

	return &models.TokenPair{
		TokenType:              common.TokenType,
		AccessToken:            access,
		RefreshToken:           refresh,
		RefreshValiditySeconds: int64(e.settings.RefreshTokenTTL / time.Second),
	}, nil
}

// ValidateAccess checks signature, algorithm and expiry of an access token.
// It never consults storage.
func (e *Engine) ValidateAccess(token string) error {
	_, err := e.parse(token, jwt.SigningMethodHS512, &AccessClaims{})
	return e.reject(kindAccess, err)
}

// ValidateRefresh checks signature, algorithm and expiry of a refresh token.
// Whether it is still the current one is up to the store.
func (e *Engine) ValidateRefresh(token string) error {
	_, err := e.parse(token, jwt.SigningMethodHS256, &jwt.RegisteredClaims{})
	return e.reject(kindRefresh, err)
}

// ParseClaims returns the claims of a correctly signed access token, even
// when it has expired. Any other failure is returned as from ValidateAccess.
func (e *Engine) ParseClaims(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	_, err := e.parse(token, jwt.SigningMethodHS512, claims)
	if err != nil && !errors.Is(err, common.ErrTokenExpired) {
		return nil, e.reject(kindAccess, err)
	}
	return claims, nil
}

// Authenticate resolves an access token to the active member it names.
// Expiry is not checked here; callers run ValidateAccess first.
func (e *Engine) Authenticate(ctx context.Context, token string) (*Principal, error) {
	claims, err := e.ParseClaims(token)
	if err != nil {
		return nil, err
	}
	user, err := e.subjects.FindBySubject(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUnknownSubject
		}
		return nil, fmt.Errorf("lookup subject: %w", err)
	}
	return &Principal{
		UserID:                 user.ID,
		Subject:                claims.Subject,
		Authorities:            claims.AuthorityList(),
		AdditionalInfoProvided: claims.AdditionalInfoProvided,
	}, nil
}

// RemainingLifetime is the time until the token expires; negative once it
// has.
func (e *Engine) RemainingLifetime(token string) (time.Duration, error) {
	claims, err := e.ParseClaims(token)
	if err != nil {
		return 0, err
	}
	if claims.ExpiresAt == nil {
		return 0, common.ErrMalformedToken
	}
	return claims.ExpiresAt.Sub(e.now()), nil
}

// AdditionalInfoFlag reports whether the token was minted after sign-up
// was completed.
func (e *Engine) AdditionalInfoFlag(token string) (bool, error) {
	claims, err := e.ParseClaims(token)
	if err != nil {
		return false, err
	}
	return claims.AdditionalInfoProvided, nil
}

func (e *Engine) parse(token string, method jwt.SigningMethod, claims jwt.Claims) (*jwt.Token, error) {
	if strings.TrimSpace(token) == "" {
		return nil, common.ErrMalformedToken
	}

	t, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != method.Alg() {
			return nil, fmt.Errorf("%w: alg %s", common.ErrUnsupportedToken, t.Method.Alg())
		}
		return e.settings.Secret, nil
	}, jwt.WithTimeFunc(e.now), jwt.WithExpirationRequired())

	return t, classify(err)
}

// classify maps jwt errors onto the token error taxonomy.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrMalformedToken):
		return err
	case errors.Is(err, common.ErrUnsupportedToken), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", common.ErrUnsupportedToken, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return common.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed), errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", common.ErrMalformedSignature, err)
	default:
		return fmt.Errorf("%w: %v", common.ErrMalformedToken, err)
	}
}

func (e *Engine) reject(kind string, err error) error {
	if err == nil {
		return nil
	}
	e.metrics.TokenRejected(kind, reason(err))
	e.logger.Debug(context.Background(), "token rejected", "kind", kind, "error", err)
	return err
}

func reason(err error) string {
	switch {
	case errors.Is(err, common.ErrTokenExpired):
		return "expired"
	case errors.Is(err, common.ErrUnsupportedToken):
		return "unsupported"
	case errors.Is(err, common.ErrMalformedSignature):
		return "signature"
	default:
		return "malformed"
	}
}
