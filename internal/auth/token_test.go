package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"userhub/internal/users"
)

func newTestCodec(t *testing.T, algorithm string, lifetime time.Duration) *TokenCodec {
	t.Helper()
	codec, err := NewTokenCodec("test-secret", algorithm, lifetime)
	if err != nil {
		t.Fatalf("NewTokenCodec returned error: %v", err)
	}
	return codec
}

func testUser() *users.User {
	return &users.User{
		ID:        uuid.New(),
		Email:     "user@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Provider:  users.ProviderGoogle,
	}
}

func TestTokenCodecRoundTrip(t *testing.T) {
	codec := newTestCodec(t, "HS256", 30*time.Minute)
	user := testUser()

	token, err := codec.Issue(user)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	principal, err := codec.Validate(token)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if principal.UserID != user.ID {
		t.Fatalf("expected user id %s, got %s", user.ID, principal.UserID)
	}
	if principal.Email != user.Email || principal.FirstName != user.FirstName || principal.LastName != user.LastName {
		t.Fatalf("principal fields do not match user: %+v", principal)
	}
}

func TestTokenCodecExpiryBoundary(t *testing.T) {
	codec := newTestCodec(t, "HS256", 30*time.Minute)
	issuedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	codec.now = func() time.Time { return issuedAt }

	token, err := codec.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	codec.now = func() time.Time { return issuedAt.Add(30*time.Minute - time.Second) }
	if _, err := codec.Validate(token); err != nil {
		t.Fatalf("expected token accepted one second before expiry, got %v", err)
	}

	// Expiry is exclusive: a token is rejected at exactly issued-at + lifetime.
	codec.now = func() time.Time { return issuedAt.Add(30 * time.Minute) }
	if _, err := codec.Validate(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired at expiry instant, got %v", err)
	}

	codec.now = func() time.Time { return issuedAt.Add(time.Hour) }
	if _, err := codec.Validate(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired after expiry, got %v", err)
	}
}

func TestTokenCodecRejectsTamperedSignature(t *testing.T) {
	codec := newTestCodec(t, "HS256", 30*time.Minute)

	token, err := codec.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	segments := strings.Split(token, ".")
	if len(segments) != 3 {
		t.Fatalf("expected 3 token segments, got %d", len(segments))
	}

	// Flip one character of the signature segment.
	sig := []byte(segments[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := segments[0] + "." + segments[1] + "." + string(sig)

	if _, err := codec.Validate(tampered); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestTokenCodecRejectsWrongSecret(t *testing.T) {
	codec := newTestCodec(t, "HS256", 30*time.Minute)
	other, err := NewTokenCodec("other-secret", "HS256", 30*time.Minute)
	if err != nil {
		t.Fatalf("NewTokenCodec returned error: %v", err)
	}

	token, err := other.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if _, err := codec.Validate(token); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestTokenCodecRejectsAlgorithmConfusion(t *testing.T) {
	codec := newTestCodec(t, "HS256", 30*time.Minute)
	hs512 := newTestCodec(t, "HS512", 30*time.Minute)

	token, err := hs512.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	// Same secret, different algorithm: must be rejected, not negotiated.
	if _, err := codec.Validate(token); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature for foreign algorithm, got %v", err)
	}
}

func TestTokenCodecRejectsMalformedToken(t *testing.T) {
	codec := newTestCodec(t, "HS256", 30*time.Minute)

	for _, token := range []string{"", "garbage", "a.b", "a.b.c.d"} {
		if _, err := codec.Validate(token); !errors.Is(err, ErrTokenMalformed) {
			t.Fatalf("expected ErrTokenMalformed for %q, got %v", token, err)
		}
	}
}

func TestTokenCodecRejectsMissingSubject(t *testing.T) {
	codec := newTestCodec(t, "HS256", 30*time.Minute)

	now := time.Now()
	claims := Claims{
		Email: "user@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := codec.Validate(token); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed for missing subject, got %v", err)
	}
}

func TestNewTokenCodecRejectsUnsupportedAlgorithm(t *testing.T) {
	if _, err := NewTokenCodec("secret", "RS256", time.Minute); err == nil {
		t.Fatal("expected error for asymmetric algorithm")
	}
	if _, err := NewTokenCodec("secret", "none", time.Minute); err == nil {
		t.Fatal("expected error for none algorithm")
	}
}
