package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Verifier resolves a token to a user id.
type Verifier interface {
	Verify(token string) (string, error)
}

// UserExister confirms the token subject still names an account.
type UserExister interface {
	UserExists(ctx context.Context, id string) (bool, error)
}

// TokenFromRequest reads the `token` header, falling back to an
// Authorization bearer.
func TokenFromRequest(r *http.Request) string {
	if tok := r.Header.Get("token"); tok != "" {
		return tok
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// RequireAuth rejects requests without a valid token for an existing user
// and stores the user id in the request context.
func RequireAuth(v Verifier, users UserExister) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := TokenFromRequest(r)
			if tok == "" {
				unauthorized(w, "not authorized")
				return
			}
			userID, err := v.Verify(tok)
			if err != nil {
				unauthorized(w, "invalid token")
				return
			}
			ok, err := users.UserExists(r.Context(), userID)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "internal error"})
				return
			}
			if !ok {
				unauthorized(w, "user not found")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// WithUserID returns a context carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID returns the authenticated user id, or "".
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": msg})
}
