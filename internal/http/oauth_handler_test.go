package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"userhub/internal/auth"
	"userhub/internal/users"
)

type fakeExchanger struct {
	authCodeURL func(state string) string
	exchange    func(ctx context.Context, code string) (*auth.ExternalIdentity, error)
}

func (f *fakeExchanger) AuthCodeURL(state string) string {
	if f.authCodeURL != nil {
		return f.authCodeURL(state)
	}
	return "https://accounts.example.com/authorize?state=" + url.QueryEscape(state)
}

func (f *fakeExchanger) Exchange(ctx context.Context, code string) (*auth.ExternalIdentity, error) {
	if f.exchange != nil {
		return f.exchange(ctx, code)
	}
	return &auth.ExternalIdentity{
		Subject:       "provider-subject",
		Email:         "ada@example.com",
		EmailVerified: true,
		GivenName:     "Ada",
		FamilyName:    "Lovelace",
	}, nil
}

type oauthTestDeps struct {
	handler *OAuthHandler
	repo    *users.InMemoryRepository
	states  *auth.StateStore
	codec   *auth.TokenCodec
	service *users.Service
}

func newOAuthTestDeps(t *testing.T, exchanger *fakeExchanger) oauthTestDeps {
	t.Helper()

	repo := users.NewInMemoryRepository(nil)
	service := users.NewService(repo)
	states := auth.NewStateStore(10 * time.Minute)
	codec := testCodec(t)
	resolver := auth.NewResolver(repo)

	return oauthTestDeps{
		handler: NewOAuthHandler(exchanger, states, resolver, codec, service, discardLogger()),
		repo:    repo,
		states:  states,
		codec:   codec,
		service: service,
	}
}

func TestLoginReturnsAuthorizationURLAndState(t *testing.T) {
	deps := newOAuthTestDeps(t, &fakeExchanger{})

	req := httptest.NewRequest(http.MethodGet, "/auth/google/login", nil)
	rec := httptest.NewRecorder()
	deps.handler.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body struct {
		AuthorizationURL string `json:"authorization_url"`
		State            string `json:"state"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.State == "" {
		t.Fatal("expected non-empty state")
	}
	parsed, err := url.Parse(body.AuthorizationURL)
	if err != nil {
		t.Fatalf("authorization_url is not a URL: %v", err)
	}
	if parsed.Query().Get("state") != body.State {
		t.Fatal("expected authorization URL to carry the issued state")
	}

	// The issued state must be consumable exactly once.
	if _, err := deps.states.Consume(body.State); err != nil {
		t.Fatalf("issued state not consumable: %v", err)
	}
}

func TestCallbackSignsInNewUser(t *testing.T) {
	deps := newOAuthTestDeps(t, &fakeExchanger{})

	state, err := deps.states.Issue("")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state="+state+"&code=good-code", nil)
	rec := httptest.NewRecorder()
	deps.handler.Callback(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		User        struct {
			UserID    string `json:"user_id"`
			Email     string `json:"email"`
			FirstName string `json:"first_name"`
			LastName  string `json:"last_name"`
		} `json:"user"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.TokenType != "bearer" {
		t.Fatalf("expected token_type bearer, got %q", body.TokenType)
	}
	if body.User.Email != "ada@example.com" || body.User.FirstName != "Ada" || body.User.LastName != "Lovelace" {
		t.Fatalf("unexpected user payload: %+v", body.User)
	}

	principal, err := deps.codec.Validate(body.AccessToken)
	if err != nil {
		t.Fatalf("issued token failed validation: %v", err)
	}
	if principal.UserID.String() != body.User.UserID {
		t.Fatal("expected token subject to match returned user id")
	}
	if principal.Email != "ada@example.com" {
		t.Fatalf("expected token email claim, got %q", principal.Email)
	}

	stored, err := deps.repo.FindByEmail(context.Background(), "ada@example.com")
	if err != nil {
		t.Fatalf("FindByEmail returned error: %v", err)
	}
	if stored == nil {
		t.Fatal("expected user persisted by callback")
	}
	if stored.Provider != users.ProviderGoogle {
		t.Fatalf("expected federated provider, got %q", stored.Provider)
	}
}

func TestCallbackReturnsRedirectHint(t *testing.T) {
	deps := newOAuthTestDeps(t, &fakeExchanger{})

	state, err := deps.states.Issue("/dashboard")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state="+state+"&code=good-code", nil)
	rec := httptest.NewRecorder()
	deps.handler.Callback(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body struct {
		RedirectTo string `json:"redirect_to"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.RedirectTo != "/dashboard" {
		t.Fatalf("expected redirect hint /dashboard, got %q", body.RedirectTo)
	}
}

func TestCallbackRejectsUnknownState(t *testing.T) {
	deps := newOAuthTestDeps(t, &fakeExchanger{})

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=never-issued&code=good-code", nil)
	rec := httptest.NewRecorder()
	deps.handler.Callback(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if detail := decodeDetail(t, rec); detail != "Invalid or expired state" {
		t.Fatalf("unexpected detail %q", detail)
	}
}

func TestCallbackRejectsReusedState(t *testing.T) {
	deps := newOAuthTestDeps(t, &fakeExchanger{})

	state, err := deps.states.Issue("")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	first := httptest.NewRecorder()
	deps.handler.Callback(first, httptest.NewRequest(http.MethodGet, "/auth/google/callback?state="+state+"&code=good-code", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("expected first callback to succeed, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	deps.handler.Callback(second, httptest.NewRequest(http.MethodGet, "/auth/google/callback?state="+state+"&code=good-code", nil))
	if second.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 on state reuse, got %d", second.Code)
	}
}

func TestCallbackRejectsMissingCode(t *testing.T) {
	deps := newOAuthTestDeps(t, &fakeExchanger{})

	state, err := deps.states.Issue("")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state="+state, nil)
	rec := httptest.NewRecorder()
	deps.handler.Callback(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if detail := decodeDetail(t, rec); detail != "Missing authorization code" {
		t.Fatalf("unexpected detail %q", detail)
	}
}

func TestCallbackReportsProviderError(t *testing.T) {
	deps := newOAuthTestDeps(t, &fakeExchanger{})

	state, err := deps.states.Issue("")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state="+state+"&error=access_denied", nil)
	rec := httptest.NewRecorder()
	deps.handler.Callback(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestCallbackExchangeFailureLeavesNoUser(t *testing.T) {
	deps := newOAuthTestDeps(t, &fakeExchanger{
		exchange: func(ctx context.Context, code string) (*auth.ExternalIdentity, error) {
			return nil, auth.ErrExchangeFailed
		},
	})

	state, err := deps.states.Issue("")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state="+state+"&code=bad-code", nil)
	rec := httptest.NewRecorder()
	deps.handler.Callback(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if detail := decodeDetail(t, rec); detail != "Failed to complete authentication" {
		t.Fatalf("unexpected detail %q", detail)
	}

	all, err := deps.repo.List(context.Background(), users.Filter{})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected no users persisted after failed exchange, got %d", len(all))
	}
}

func TestCallbackRejectsIdentityWithoutEmail(t *testing.T) {
	deps := newOAuthTestDeps(t, &fakeExchanger{
		exchange: func(ctx context.Context, code string) (*auth.ExternalIdentity, error) {
			return nil, auth.ErrIdentityIncomplete
		},
	})

	state, err := deps.states.Issue("")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state="+state+"&code=good-code", nil)
	rec := httptest.NewRecorder()
	deps.handler.Callback(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if detail := decodeDetail(t, rec); detail != "Provider did not supply an email address" {
		t.Fatalf("unexpected detail %q", detail)
	}
}

func TestCallbackRejectsUnverifiedEmail(t *testing.T) {
	deps := newOAuthTestDeps(t, &fakeExchanger{
		exchange: func(ctx context.Context, code string) (*auth.ExternalIdentity, error) {
			return &auth.ExternalIdentity{
				Subject:       "provider-subject",
				Email:         "ada@example.com",
				EmailVerified: false,
			}, nil
		},
	})

	state, err := deps.states.Issue("")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state="+state+"&code=good-code", nil)
	rec := httptest.NewRecorder()
	deps.handler.Callback(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}

	stored, err := deps.repo.FindByEmail(context.Background(), "ada@example.com")
	if err != nil {
		t.Fatalf("FindByEmail returned error: %v", err)
	}
	if stored != nil {
		t.Fatal("expected no user persisted for unverified email")
	}
}

func TestCallbackSecondLoginReusesUser(t *testing.T) {
	deps := newOAuthTestDeps(t, &fakeExchanger{})

	var firstID string
	for i := 0; i < 2; i++ {
		state, err := deps.states.Issue("")
		if err != nil {
			t.Fatalf("Issue returned error: %v", err)
		}

		rec := httptest.NewRecorder()
		deps.handler.Callback(rec, httptest.NewRequest(http.MethodGet, "/auth/google/callback?state="+state+"&code=good-code", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}

		var body struct {
			User struct {
				UserID string `json:"user_id"`
			} `json:"user"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if i == 0 {
			firstID = body.User.UserID
		} else if body.User.UserID != firstID {
			t.Fatalf("expected repeat login to resolve the same user, got %s then %s", firstID, body.User.UserID)
		}
	}

	all, err := deps.repo.List(context.Background(), users.Filter{})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected exactly one stored user, got %d", len(all))
	}
}

func TestIssueTokenWithPassword(t *testing.T) {
	deps := newOAuthTestDeps(t, &fakeExchanger{})
	if _, err := deps.service.Register(context.Background(), users.RegisterInput{
		FirstName: "Ada",
		Email:     "ada@example.com",
		Password:  "correct horse",
	}); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	target := "/auth/token?email=" + url.QueryEscape("ada@example.com") + "&password=" + url.QueryEscape("correct horse")
	rec := httptest.NewRecorder()
	deps.handler.IssueToken(rec, httptest.NewRequest(http.MethodPost, target, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.TokenType != "bearer" {
		t.Fatalf("expected token_type bearer, got %q", body.TokenType)
	}
	if _, err := deps.codec.Validate(body.AccessToken); err != nil {
		t.Fatalf("issued token failed validation: %v", err)
	}
}

func TestIssueTokenRejectsBadPassword(t *testing.T) {
	deps := newOAuthTestDeps(t, &fakeExchanger{})
	if _, err := deps.service.Register(context.Background(), users.RegisterInput{
		FirstName: "Ada",
		Email:     "ada@example.com",
		Password:  "correct horse",
	}); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	rec := httptest.NewRecorder()
	deps.handler.IssueToken(rec, httptest.NewRequest(http.MethodPost, "/auth/token?email=ada@example.com&password=wrong", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	if detail := decodeDetail(t, rec); detail != "Incorrect email or password" {
		t.Fatalf("unexpected detail %q", detail)
	}
}

func TestIsValidRedirectPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/dashboard", true},
		{"/a/b?c=d", true},
		{"", false},
		{"dashboard", false},
		{"//evil.com", false},
		{"https://evil.com", false},
		{"%2F%2Fevil.com", false},
	}

	for _, tt := range tests {
		if got := isValidRedirectPath(tt.path); got != tt.want {
			t.Errorf("isValidRedirectPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
