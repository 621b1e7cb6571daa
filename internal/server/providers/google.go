package providers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/dmitrijs2005/kiwes/internal/common"
	"github.com/dmitrijs2005/kiwes/internal/server/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	googleIssuer      = "https://accounts.google.com"
	googleJWKSURL     = "https://www.googleapis.com/oauth2/v3/certs"
	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

type googleClaims struct {
	Subject       string        `json:"sub"`
	Email         string        `json:"email"`
	EmailVerified emailVerified `json:"email_verified"`
	Picture       string        `json:"picture"`
}

// GoogleResolver signs members in with Google OpenID Connect.
type GoogleResolver struct {
	oauth       *oauth2.Config
	verifier    *oidc.IDTokenVerifier
	userInfoURL string
	client      *http.Client
}

// NewGoogleResolver builds the resolver. Signing keys are fetched lazily on
// first verification, so construction makes no network calls.
func NewGoogleResolver(ctx context.Context, cfg OAuthClientConfig) *GoogleResolver {
	keys := oidc.NewRemoteKeySet(ctx, googleJWKSURL)
	return &GoogleResolver{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		verifier:    oidc.NewVerifier(googleIssuer, keys, &oidc.Config{ClientID: cfg.ClientID}),
		userInfoURL: googleUserInfoURL,
		client:      newHTTPClient(),
	}
}

func (g *GoogleResolver) Name() string { return "google" }

func (g *GoogleResolver) Exchange(ctx context.Context, cred Credential) (*models.Identity, error) {
	if err := cred.validate(); err != nil {
		return nil, err
	}

	var claims googleClaims
	switch cred.Kind {
	case CredentialCode:
		token, err := g.oauth.Exchange(context.WithValue(ctx, oauth2.HTTPClient, g.client), cred.Value)
		if err != nil {
			return nil, exchangeError(err)
		}
		rawIDToken, ok := token.Extra("id_token").(string)
		if !ok {
			return nil, fmt.Errorf("%w: no id_token in google response", common.ErrProviderUnavailable)
		}
		idToken, err := g.verifier.Verify(ctx, rawIDToken)
		if err != nil {
			return nil, fmt.Errorf("%w: verify id_token: %v", common.ErrInvalidCredential, err)
		}
		if err := idToken.Claims(&claims); err != nil {
			return nil, fmt.Errorf("%w: parse claims: %v", common.ErrProviderUnavailable, err)
		}
	case CredentialAccessToken:
		if err := fetchUserInfo(ctx, g.client, g.userInfoURL, cred.Value, &claims); err != nil {
			return nil, err
		}
	}

	if err := requireEmail(g.Name(), claims.Email, claims.EmailVerified); err != nil {
		return nil, err
	}

	return &models.Identity{
		Provider:        g.Name(),
		ProviderUserID:  claims.Subject,
		Email:           claims.Email,
		ProfileImageURL: claims.Picture,
	}, nil
}
