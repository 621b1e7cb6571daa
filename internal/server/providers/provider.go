// Package providers turns social login credentials into identities. Each
// resolver is a thin adapter over golang.org/x/oauth2 and go-oidc; it
// reports facts about the person and makes no membership decisions.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/kiwes/internal/common"
	"github.com/dmitrijs2005/kiwes/internal/server/models"
	"golang.org/x/oauth2"
)

type CredentialKind int

const (
	// CredentialCode is an authorization code from the provider redirect.
	CredentialCode CredentialKind = iota + 1
	// CredentialAccessToken is a token the client already obtained from the
	// provider: an OAuth access token, or an identity token for Apple.
	CredentialAccessToken
)

func (k CredentialKind) String() string {
	switch k {
	case CredentialCode:
		return "code"
	case CredentialAccessToken:
		return "access_token"
	default:
		return "unknown"
	}
}

type Credential struct {
	Kind  CredentialKind
	Value string
}

func (c Credential) validate() error {
	if strings.TrimSpace(c.Value) == "" {
		return fmt.Errorf("%w: empty %s", common.ErrInvalidCredential, c.Kind)
	}
	if c.Kind != CredentialCode && c.Kind != CredentialAccessToken {
		return fmt.Errorf("%w: unknown credential kind", common.ErrInvalidCredential)
	}
	return nil
}

// Resolver exchanges a credential for the identity it proves.
type Resolver interface {
	// Name is the provider tag used in routes, e.g. "kakao".
	Name() string

	// Exchange fails with common.ErrInvalidCredential when the provider
	// rejects the credential and common.ErrProviderUnavailable when it
	// cannot be reached or misbehaves.
	Exchange(ctx context.Context, cred Credential) (*models.Identity, error)
}

// OAuthClientConfig is the registered client of a provider.
type OAuthClientConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Registry maps provider tags to resolvers. It is built once at startup.
type Registry struct {
	resolvers map[string]Resolver
}

func NewRegistry(list ...Resolver) *Registry {
	m := make(map[string]Resolver, len(list))
	for _, r := range list {
		m[strings.ToLower(r.Name())] = r
	}
	return &Registry{resolvers: m}
}

// Get returns the resolver for tag, matched case-insensitively.
func (r *Registry) Get(tag string) (Resolver, error) {
	res, ok := r.resolvers[strings.ToLower(strings.TrimSpace(tag))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", common.ErrUnsupportedProvider, tag)
	}
	return res, nil
}

// Tags lists the registered provider tags in order.
func (r *Registry) Tags() []string {
	tags := make([]string, 0, len(r.resolvers))
	for t := range r.resolvers {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

const providerTimeout = 10 * time.Second

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: providerTimeout}
}

// exchangeError classifies a failed oauth2 code exchange.
func exchangeError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode < http.StatusInternalServerError {
		return fmt.Errorf("%w: %v", common.ErrInvalidCredential, err)
	}
	return fmt.Errorf("%w: %v", common.ErrProviderUnavailable, err)
}

// fetchUserInfo GETs a bearer-protected JSON document into dst.
func fetchUserInfo(ctx context.Context, client *http.Client, endpoint string, accessToken string, dst any) error {
	ctx, cancel := context.WithTimeout(context.WithValue(ctx, oauth2.HTTPClient, client), providerTimeout)
	defer cancel()
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrProviderUnavailable, err)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: userinfo status %d", common.ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: userinfo status %d", common.ErrInvalidCredential, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: decode userinfo: %v", common.ErrProviderUnavailable, err)
	}
	return nil
}

// requireEmail accepts an identity only when the provider vouches for the
// address. Members are matched by email across providers.
func requireEmail(provider, email string, verified emailVerified) error {
	if strings.TrimSpace(email) == "" {
		return fmt.Errorf("%w: %s account has no email", common.ErrInvalidCredential, provider)
	}
	if !verified {
		return fmt.Errorf("%w: %s email is not verified", common.ErrInvalidCredential, provider)
	}
	return nil
}

// emailVerified decodes a verification claim sent either as a JSON boolean
// or, as Apple does, as the string "true" or "false".
type emailVerified bool

func (v *emailVerified) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case bool:
		*v = emailVerified(x)
	case string:
		*v = emailVerified(strings.EqualFold(x, "true"))
	case nil:
		*v = false
	default:
		return fmt.Errorf("email_verified: unexpected %T", raw)
	}
	return nil
}
