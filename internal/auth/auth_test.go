package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMintAndVerify(t *testing.T) {
	tokens, err := NewTokens("secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	tok, err := tokens.Mint("user-1")
	if err != nil {
		t.Fatal(err)
	}
	sub, err := tokens.Verify(tok)
	if err != nil {
		t.Fatal(err)
	}
	if sub != "user-1" {
		t.Errorf("subject = %q, want user-1", sub)
	}
}

func TestVerifyRejects(t *testing.T) {
	tokens, _ := NewTokens("secret", time.Hour)
	other, _ := NewTokens("other", time.Hour)
	foreign, _ := other.Mint("user-1")

	expired, _ := NewTokens("secret", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, _ := expired.Mint("user-1")

	for name, tok := range map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": foreign,
		"expired":      stale,
		"empty":        "",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := tokens.Verify(tok); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("err = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestNewTokensRequiresSecret(t *testing.T) {
	if _, err := NewTokens("", time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatal(err)
	}
	if err := CheckPassword(hash, "hunter22"); err != nil {
		t.Errorf("correct password rejected: %v", err)
	}
	if err := CheckPassword(hash, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

type users map[string]bool

func (u users) UserExists(_ context.Context, id string) (bool, error) { return u[id], nil }

func TestRequireAuth(t *testing.T) {
	tokens, _ := NewTokens("secret", time.Hour)
	good, _ := tokens.Mint("alice")
	gone, _ := tokens.Mint("deleted")

	var seen string
	h := RequireAuth(tokens, users{"alice": true})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserID(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"token header", "token", good, http.StatusOK},
		{"bearer", "Authorization", "Bearer " + good, http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"invalid", "token", "nope", http.StatusUnauthorized},
		{"unknown user", "token", gone, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusOK && seen != "alice" {
				t.Errorf("context user = %q, want alice", seen)
			}
		})
	}
}
