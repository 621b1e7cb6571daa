package providers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/kiwes/internal/server/models"
	"golang.org/x/oauth2"
)

const kakaoUserInfoURL = "https://kapi.kakao.com/v2/user/me"

var kakaoEndpoint = oauth2.Endpoint{
	AuthURL:   "https://kauth.kakao.com/oauth/authorize",
	TokenURL:  "https://kauth.kakao.com/oauth/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

type kakaoUser struct {
	ID      int64 `json:"id"`
	Account struct {
		Email           string        `json:"email"`
		IsEmailVerified emailVerified `json:"is_email_verified"`
		Gender          string        `json:"gender"`
		Profile         struct {
			ProfileImageURL string `json:"profile_image_url"`
		} `json:"profile"`
	} `json:"kakao_account"`
}

// KakaoResolver signs members in with Kakao Login. Kakao is plain OAuth 2:
// both credential kinds end in a call to the user info API.
type KakaoResolver struct {
	oauth       *oauth2.Config
	userInfoURL string
	client      *http.Client
}

func NewKakaoResolver(cfg OAuthClientConfig) *KakaoResolver {
	return &KakaoResolver{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     kakaoEndpoint,
			Scopes:       []string{"account_email", "gender", "profile_image"},
		},
		userInfoURL: kakaoUserInfoURL,
		client:      newHTTPClient(),
	}
}

func (k *KakaoResolver) Name() string { return "kakao" }

func (k *KakaoResolver) Exchange(ctx context.Context, cred Credential) (*models.Identity, error) {
	if err := cred.validate(); err != nil {
		return nil, err
	}

	accessToken := cred.Value
	if cred.Kind == CredentialCode {
		token, err := k.oauth.Exchange(context.WithValue(ctx, oauth2.HTTPClient, k.client), cred.Value)
		if err != nil {
			return nil, exchangeError(err)
		}
		accessToken = token.AccessToken
	}

	var u kakaoUser
	if err := fetchUserInfo(ctx, k.client, k.userInfoURL, accessToken, &u); err != nil {
		return nil, err
	}
	if err := requireEmail(k.Name(), u.Account.Email, u.Account.IsEmailVerified); err != nil {
		return nil, err
	}

	return &models.Identity{
		Provider:        k.Name(),
		ProviderUserID:  strconv.FormatInt(u.ID, 10),
		Email:           u.Account.Email,
		ProfileImageURL: u.Account.Profile.ProfileImageURL,
		Gender:          strings.ToUpper(u.Account.Gender),
	}, nil
}
