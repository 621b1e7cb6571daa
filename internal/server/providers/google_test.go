package providers

import (
	"context"
	"net/http"
	"testing"

	"github.com/dmitrijs2005/kiwes/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const googleTestClient = "google-client"

func newTestGoogle(t *testing.T, tokenURL, userInfoURL string, iss *idTokenIssuer) *GoogleResolver {
	t.Helper()
	g := NewGoogleResolver(context.Background(), OAuthClientConfig{
		ClientID:     googleTestClient,
		ClientSecret: "secret",
		RedirectURL:  "http://localhost/login/oauth2/code/google",
	})
	g.oauth.Endpoint = oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams}
	g.userInfoURL = userInfoURL
	if iss != nil {
		g.verifier = iss.verifier(googleTestClient)
	}
	return g
}

func TestGoogle_ExchangeCode(t *testing.T) {
	iss := newIDTokenIssuer(t, googleIssuer)
	idToken := iss.sign(t, googleTestClient, jwt.MapClaims{
		"sub":            "g-42",
		"email":          "alice@gmail.test",
		"email_verified": true,
		"picture":        "https://img.test/a.png",
	})
	srv := tokenServer(t, http.StatusOK, map[string]any{
		"access_token": "at",
		"token_type":   "Bearer",
		"id_token":     idToken,
	}, func(r *http.Request) {
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		assert.Equal(t, googleTestClient, r.PostForm.Get("client_id"))
	})

	g := newTestGoogle(t, srv.URL, "", iss)
	id, err := g.Exchange(context.Background(), Credential{Kind: CredentialCode, Value: "the-code"})
	require.NoError(t, err)

	assert.Equal(t, "google", id.Provider)
	assert.Equal(t, "g-42", id.ProviderUserID)
	assert.Equal(t, "alice@gmail.test", id.Email)
	assert.Equal(t, "https://img.test/a.png", id.ProfileImageURL)
}

func TestGoogle_ExchangeCode_WrongAudience(t *testing.T) {
	iss := newIDTokenIssuer(t, googleIssuer)
	idToken := iss.sign(t, "someone-else", jwt.MapClaims{"sub": "g-42", "email": "alice@gmail.test"})
	srv := tokenServer(t, http.StatusOK, map[string]any{
		"access_token": "at", "token_type": "Bearer", "id_token": idToken,
	}, nil)

	g := newTestGoogle(t, srv.URL, "", iss)
	_, err := g.Exchange(context.Background(), Credential{Kind: CredentialCode, Value: "c"})
	assert.ErrorIs(t, err, common.ErrInvalidCredential)
}

func TestGoogle_ExchangeCode_Rejected(t *testing.T) {
	srv := tokenServer(t, http.StatusBadRequest, nil, nil)

	g := newTestGoogle(t, srv.URL, "", nil)
	_, err := g.Exchange(context.Background(), Credential{Kind: CredentialCode, Value: "used-code"})
	assert.ErrorIs(t, err, common.ErrInvalidCredential)
}

func TestGoogle_ExchangeCode_NoIDToken(t *testing.T) {
	srv := tokenServer(t, http.StatusOK, map[string]any{"access_token": "at", "token_type": "Bearer"}, nil)

	g := newTestGoogle(t, srv.URL, "", nil)
	_, err := g.Exchange(context.Background(), Credential{Kind: CredentialCode, Value: "c"})
	assert.ErrorIs(t, err, common.ErrProviderUnavailable)
}

func TestGoogle_ExchangeAccessToken(t *testing.T) {
	ui := jsonServer(t, http.StatusOK, map[string]any{"sub": "g-7", "email": "bob@gmail.test", "email_verified": true})

	g := newTestGoogle(t, "", ui.URL, nil)
	id, err := g.Exchange(context.Background(), Credential{Kind: CredentialAccessToken, Value: "at"})
	require.NoError(t, err)
	assert.Equal(t, "g-7", id.ProviderUserID)
	assert.Equal(t, "bob@gmail.test", id.Email)
}

func TestGoogle_ExchangeAccessToken_NoEmail(t *testing.T) {
	ui := jsonServer(t, http.StatusOK, map[string]any{"sub": "g-7"})

	g := newTestGoogle(t, "", ui.URL, nil)
	_, err := g.Exchange(context.Background(), Credential{Kind: CredentialAccessToken, Value: "at"})
	assert.ErrorIs(t, err, common.ErrInvalidCredential)
}

func TestGoogle_UnverifiedEmailRejected(t *testing.T) {
	t.Run("id_token", func(t *testing.T) {
		iss := newIDTokenIssuer(t, googleIssuer)
		idToken := iss.sign(t, googleTestClient, jwt.MapClaims{
			"sub":            "g-99",
			"email":          "minji@kakao.test",
			"email_verified": false,
		})
		srv := tokenServer(t, http.StatusOK, map[string]any{
			"access_token": "at", "token_type": "Bearer", "id_token": idToken,
		}, nil)

		id, err := newTestGoogle(t, srv.URL, "", iss).Exchange(context.Background(), Credential{Kind: CredentialCode, Value: "c"})
		assert.ErrorIs(t, err, common.ErrInvalidCredential)
		assert.Nil(t, id)
	})

	t.Run("userinfo without claim", func(t *testing.T) {
		ui := jsonServer(t, http.StatusOK, map[string]any{"sub": "g-99", "email": "minji@kakao.test"})

		id, err := newTestGoogle(t, "", ui.URL, nil).Exchange(context.Background(), Credential{Kind: CredentialAccessToken, Value: "at"})
		assert.ErrorIs(t, err, common.ErrInvalidCredential)
		assert.Nil(t, id)
	})
}
