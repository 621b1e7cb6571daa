package providers

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/dmitrijs2005/kiwes/internal/common"
	"github.com/dmitrijs2005/kiwes/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

const (
	appleIssuer  = "https://appleid.apple.com"
	appleJWKSURL = "https://appleid.apple.com/auth/keys"

	appleClientSecretTTL = 5 * time.Minute
)

var appleEndpoint = oauth2.Endpoint{
	AuthURL:   "https://appleid.apple.com/auth/authorize",
	TokenURL:  "https://appleid.apple.com/auth/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// AppleConfig is a Sign in with Apple service registration.
type AppleConfig struct {
	ClientID      string
	TeamID        string
	KeyID         string
	PrivateKeyPEM string
	RedirectURL   string
}

type appleClaims struct {
	Subject       string        `json:"sub"`
	Email         string        `json:"email"`
	EmailVerified emailVerified `json:"email_verified"`
}

// AppleResolver signs members in with Apple. A code is exchanged using a
// short-lived ES256 client secret; an identity token from the native SDK is
// verified directly.
type AppleResolver struct {
	oauth    oauth2.Config
	teamID   string
	keyID    string
	key      *ecdsa.PrivateKey
	verifier *oidc.IDTokenVerifier
	client   *http.Client
	now      func() time.Time
}

func NewAppleResolver(ctx context.Context, cfg AppleConfig) (*AppleResolver, error) {
	key, err := jwt.ParseECPrivateKeyFromPEM([]byte(cfg.PrivateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("apple private key: %w", err)
	}
	keys := oidc.NewRemoteKeySet(ctx, appleJWKSURL)
	return &AppleResolver{
		oauth: oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURL,
			Endpoint:    appleEndpoint,
			Scopes:      []string{"name", "email"},
		},
		teamID:   cfg.TeamID,
		keyID:    cfg.KeyID,
		key:      key,
		verifier: oidc.NewVerifier(appleIssuer, keys, &oidc.Config{ClientID: cfg.ClientID}),
		client:   newHTTPClient(),
		now:      time.Now,
	}, nil
}

func (a *AppleResolver) Name() string { return "apple" }

// clientSecret signs the JWT Apple expects in place of a static secret.
func (a *AppleResolver) clientSecret() (string, error) {
	now := a.now()
	t := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.RegisteredClaims{
		Issuer:    a.teamID,
		Subject:   a.oauth.ClientID,
		Audience:  jwt.ClaimStrings{appleIssuer},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(appleClientSecretTTL)),
	})
	t.Header["kid"] = a.keyID
	return t.SignedString(a.key)
}

func (a *AppleResolver) Exchange(ctx context.Context, cred Credential) (*models.Identity, error) {
	if err := cred.validate(); err != nil {
		return nil, err
	}

	rawIDToken := cred.Value
	if cred.Kind == CredentialCode {
		secret, err := a.clientSecret()
		if err != nil {
			return nil, fmt.Errorf("apple client secret: %w", err)
		}
		conf := a.oauth
		conf.ClientSecret = secret

		token, err := conf.Exchange(context.WithValue(ctx, oauth2.HTTPClient, a.client), cred.Value)
		if err != nil {
			return nil, exchangeError(err)
		}
		var ok bool
		if rawIDToken, ok = token.Extra("id_token").(string); !ok {
			return nil, fmt.Errorf("%w: no id_token in apple response", common.ErrProviderUnavailable)
		}
	}

	idToken, err := a.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: verify id_token: %v", common.ErrInvalidCredential, err)
	}
	var claims appleClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: parse claims: %v", common.ErrProviderUnavailable, err)
	}
	if err := requireEmail(a.Name(), claims.Email, claims.EmailVerified); err != nil {
		return nil, err
	}

	return &models.Identity{
		Provider:       a.Name(),
		ProviderUserID: claims.Subject,
		Email:          claims.Email,
	}, nil
}
