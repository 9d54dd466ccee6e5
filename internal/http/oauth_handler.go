package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"userhub/internal/auth"
	"userhub/internal/users"
)

type googleExchanger interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.ExternalIdentity, error)
}

type identityResolver interface {
	Resolve(ctx context.Context, identity auth.ExternalIdentity) (*users.User, error)
}

// OAuthHandler handles the Google authorization-code login flow and
// the dev/test token issuance path.
type OAuthHandler struct {
	google   googleExchanger
	states   *auth.StateStore
	resolver identityResolver
	codec    *auth.TokenCodec
	userSvc  *users.Service
	logger   *slog.Logger
}

// NewOAuthHandler creates a new OAuthHandler.
func NewOAuthHandler(google googleExchanger, states *auth.StateStore, resolver identityResolver, codec *auth.TokenCodec, userSvc *users.Service, logger *slog.Logger) *OAuthHandler {
	return &OAuthHandler{
		google:   google,
		states:   states,
		resolver: resolver,
		codec:    codec,
		userSvc:  userSvc,
		logger:   logger,
	}
}

// tokenResponse is the issuance payload shared by the callback and the
// dev token endpoint.
type tokenResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	User        *tokenUserInfo `json:"user,omitempty"`
	RedirectTo  string         `json:"redirect_to,omitempty"`
}

// tokenUserInfo mirrors the claims embedded in the issued token.
type tokenUserInfo struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Login handles GET /auth/google/login. It issues a one-time state
// value and returns the provider consent URL for the client to follow.
func (h *OAuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	redirectHint := ""
	if raw := r.URL.Query().Get("redirect_to"); raw != "" && isValidRedirectPath(raw) {
		redirectHint = raw
	}

	state, err := h.states.Issue(redirectHint)
	if err != nil {
		h.logger.Error("failed to generate state", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"authorization_url": h.google.AuthCodeURL(state),
		"state":             state,
	})
}

// Callback handles GET /auth/google/callback. It consumes the state,
// exchanges the code for an identity, resolves the local user, and
// issues a session token.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	redirectHint, err := h.states.Consume(query.Get("state"))
	if err != nil {
		h.logger.Warn("oauth callback: state rejected")
		writeError(w, http.StatusBadRequest, "Invalid or expired state")
		return
	}

	if errParam := query.Get("error"); errParam != "" {
		h.logger.Warn("oauth callback: provider error", "error", errParam)
		writeError(w, http.StatusBadRequest, "Authentication was cancelled or failed")
		return
	}

	code := query.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "Missing authorization code")
		return
	}

	identity, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		if errors.Is(err, auth.ErrIdentityIncomplete) {
			h.logger.Warn("oauth callback: identity incomplete")
			writeError(w, http.StatusBadRequest, "Provider did not supply an email address")
			return
		}
		h.logger.Error("oauth callback: exchange failed", "error", err)
		writeError(w, http.StatusBadRequest, "Failed to complete authentication")
		return
	}

	if !identity.EmailVerified {
		h.logger.Warn("oauth callback: email not verified", "email", identity.Email)
		writeError(w, http.StatusBadRequest, "Email address is not verified with the provider")
		return
	}

	user, err := h.resolver.Resolve(r.Context(), *identity)
	if err != nil {
		h.logger.Error("oauth callback: identity resolution failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}

	token, err := h.codec.Issue(user)
	if err != nil {
		h.logger.Error("oauth callback: token issuance failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}

	h.logger.Info("oauth login successful", "user_id", user.ID, "email", user.Email)

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User: &tokenUserInfo{
			UserID:    user.ID.String(),
			Email:     user.Email,
			FirstName: user.FirstName,
			LastName:  user.LastName,
		},
		RedirectTo: redirectHint,
	})
}

// IssueToken handles POST /auth/token, the password-based issuance path
// used by tests and local development.
func (h *OAuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	email := query.Get("email")
	password := query.Get("password")
	if email == "" || password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.userSvc.Authenticate(r.Context(), email, password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidLogin) {
			unauthorized(w, "Incorrect email or password")
			return
		}
		h.logger.Error("token issuance: lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}

	token, err := h.codec.Issue(user)
	if err != nil {
		h.logger.Error("token issuance failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
	})
}

// isValidRedirectPath validates that a path is a safe relative
// redirect. It prevents open redirects by requiring a single leading
// "/" with no scheme or host component, including encoded bypasses.
func isValidRedirectPath(path string) bool {
	if path == "" {
		return false
	}

	decoded, err := url.QueryUnescape(path)
	if err != nil {
		return false
	}

	if !strings.HasPrefix(decoded, "/") || strings.HasPrefix(decoded, "//") {
		return false
	}

	parsed, err := url.Parse(decoded)
	if err != nil {
		return false
	}

	if parsed.Scheme != "" || parsed.Host != "" {
		return false
	}

	return true
}
