package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const exchangeTimeout = 10 * time.Second

var (
	// ErrExchangeFailed covers network errors, non-success statuses, and
	// malformed responses from either provider call.
	ErrExchangeFailed = errors.New("provider exchange failed")
	// ErrIdentityIncomplete is returned when the provider profile lacks
	// the email needed to join to a local user.
	ErrIdentityIncomplete = errors.New("provider identity incomplete")
)

// ExternalIdentity is the provider-asserted identity produced by a
// successful code exchange. It is projected into a local user
// immediately and never persisted as-is.
type ExternalIdentity struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
}

// GoogleAuthenticator handles Google OAuth 2.0 / OIDC authentication.
type GoogleAuthenticator struct {
	config   *oauth2.Config
	provider *oidc.Provider
	client   *http.Client
}

// NewGoogleAuthenticator creates a new GoogleAuthenticator. Provider
// discovery happens once here; the redirect URL is fixed so the
// exchange always matches the authorization request.
func NewGoogleAuthenticator(ctx context.Context, clientID, clientSecret, redirectURL string) (*GoogleAuthenticator, error) {
	client := &http.Client{Timeout: exchangeTimeout}

	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, client), "https://accounts.google.com")
	if err != nil {
		return nil, fmt.Errorf("oidc provider: %w", err)
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
	}

	return &GoogleAuthenticator{
		config:   config,
		provider: provider,
		client:   client,
	}, nil
}

// AuthCodeURL builds the Google consent URL carrying the given state.
// Pure construction; no network call.
func (g *GoogleAuthenticator) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(
		state,
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
}

// Exchange trades the authorization code for an access token, then
// fetches the userinfo profile with it. Authorization codes are
// single-use, so neither call is retried; any failure surfaces
// immediately as ErrExchangeFailed.
func (g *GoogleAuthenticator) Exchange(ctx context.Context, code string) (*ExternalIdentity, error) {
	ctx = oidc.ClientContext(ctx, g.client)

	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: token exchange: %v", ErrExchangeFailed, err)
	}

	userInfo, err := g.provider.UserInfo(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		return nil, fmt.Errorf("%w: userinfo: %v", ErrExchangeFailed, err)
	}

	var identity ExternalIdentity
	if err := userInfo.Claims(&identity); err != nil {
		return nil, fmt.Errorf("%w: parse userinfo: %v", ErrExchangeFailed, err)
	}

	if identity.Email == "" {
		return nil, ErrIdentityIncomplete
	}

	return &identity, nil
}
