package providers

import (
	"context"
	"net/http"
	"testing"

	"github.com/dmitrijs2005/kiwes/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestKakao(tokenURL, userInfoURL string) *KakaoResolver {
	k := NewKakaoResolver(OAuthClientConfig{ClientID: "kakao-client", ClientSecret: "s"})
	k.oauth.Endpoint = oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams}
	k.userInfoURL = userInfoURL
	return k
}

var kakaoProfile = map[string]any{
	"id": 3141592,
	"kakao_account": map[string]any{
		"email":             "minji@kakao.test",
		"is_email_verified": true,
		"gender":            "female",
		"profile": map[string]any{
			"profile_image_url": "https://k.kakaocdn.test/p.jpg",
		},
	},
}

func TestKakao_ExchangeCode(t *testing.T) {
	tok := tokenServer(t, http.StatusOK, map[string]any{"access_token": "kakao-at", "token_type": "bearer"}, func(r *http.Request) {
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "kakao-client", r.PostForm.Get("client_id"))
	})
	ui := jsonServer(t, http.StatusOK, kakaoProfile)

	id, err := newTestKakao(tok.URL, ui.URL).Exchange(context.Background(), Credential{Kind: CredentialCode, Value: "c"})
	require.NoError(t, err)

	assert.Equal(t, "kakao", id.Provider)
	assert.Equal(t, "3141592", id.ProviderUserID)
	assert.Equal(t, "minji@kakao.test", id.Email)
	assert.Equal(t, "FEMALE", id.Gender)
	assert.Equal(t, "https://k.kakaocdn.test/p.jpg", id.ProfileImageURL)
}

func TestKakao_ExchangeAccessToken(t *testing.T) {
	ui := jsonServer(t, http.StatusOK, kakaoProfile)

	id, err := newTestKakao("", ui.URL).Exchange(context.Background(), Credential{Kind: CredentialAccessToken, Value: "at"})
	require.NoError(t, err)
	assert.Equal(t, "minji@kakao.test", id.Email)
}

func TestKakao_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    any
		wantErr error
	}{
		{"expired token", http.StatusUnauthorized, map[string]any{"code": -401}, common.ErrInvalidCredential},
		{"kakao down", http.StatusBadGateway, map[string]any{}, common.ErrProviderUnavailable},
		{"no email consent", http.StatusOK, map[string]any{"id": 1, "kakao_account": map[string]any{}}, common.ErrInvalidCredential},
		{"unverified email", http.StatusOK, map[string]any{"id": 1, "kakao_account": map[string]any{
			"email": "minji@kakao.test", "is_email_verified": false,
		}}, common.ErrInvalidCredential},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ui := jsonServer(t, tt.status, tt.body)
			_, err := newTestKakao("", ui.URL).Exchange(context.Background(), Credential{Kind: CredentialAccessToken, Value: "at"})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
