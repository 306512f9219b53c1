package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const testSecret = "test-secret-that-is-long-enough"

func TestVerifyRoundTrip(t *testing.T) {
	v := NewVerifier(testSecret, "idp", "fintrack")
	token, err := v.Issue("alice", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	owner, err := v.Verify(token)
	if err != nil || owner != "alice" {
		t.Fatalf("expected alice, got %q %v", owner, err)
	}
}

func TestVerifyRejects(t *testing.T) {
	good := NewVerifier(testSecret, "idp", "fintrack")

	expired, _ := good.Issue("alice", -time.Minute)
	otherKey, _ := NewVerifier("another-secret-entirely-different", "idp", "fintrack").Issue("alice", time.Hour)
	wrongIssuer, _ := NewVerifier(testSecret, "evil", "fintrack").Issue("alice", time.Hour)
	wrongAudience, _ := NewVerifier(testSecret, "idp", "other").Issue("alice", time.Hour)
	noSubject, _ := good.Issue("", time.Hour)
	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "alice", Issuer: "idp", Audience: jwt.ClaimStrings{"fintrack"}},
	}).SignedString([]byte(testSecret))
	noneAlg, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "alice", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	cases := map[string]string{
		"expired":        expired,
		"other key":      otherKey,
		"wrong issuer":   wrongIssuer,
		"wrong audience": wrongAudience,
		"no subject":     noSubject,
		"no expiry":      noExpiry,
		"alg none":       noneAlg,
		"garbage":        "not.a.token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := good.Verify(token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestVerifyWithoutIssuerOrAudience(t *testing.T) {
	v := NewVerifier(testSecret, "", "")
	token, _ := NewVerifier(testSecret, "anyone", "anything").Issue("bob", time.Hour)
	if owner, err := v.Verify(token); err != nil || owner != "bob" {
		t.Fatalf("expected bob, got %q %v", owner, err)
	}
}

func TestMiddleware(t *testing.T) {
	v := NewVerifier(testSecret, "", "")
	token, _ := v.Issue("alice", time.Hour)

	var seen string
	h := Middleware(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = OwnerFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + token, http.StatusNoContent},
		{"lowercase scheme", "bearer " + token, http.StatusNoContent},
		{"missing", "", http.StatusUnauthorized},
		{"basic", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/transactions", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			if tt.status == http.StatusUnauthorized {
				if rr.Header().Get("WWW-Authenticate") == "" {
					t.Fatalf("missing WWW-Authenticate header")
				}
				if seen != "" {
					t.Fatalf("handler must not run")
				}
			} else if seen != "alice" {
				t.Fatalf("owner = %q", seen)
			}
		})
	}
}
