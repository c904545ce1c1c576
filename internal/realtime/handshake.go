package realtime

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// TokenVerifier resolves a bearer credential to a user id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// UserLookup confirms a verified subject still names an account.
type UserLookup interface {
	UserExists(ctx context.Context, id string) (bool, error)
}

// Handshake upgrades GET /ws requests. Identity is verified before the
// upgrade so an unverified socket never reaches the registry.
type Handshake struct {
	hub       *Hub
	verifier  TokenVerifier
	users     UserLookup
	upgrader  websocket.Upgrader
	opts      Options
	accepting func() bool
	log       *zap.Logger
}

// NewHandshake builds the websocket endpoint. users may be nil to trust
// every verified token. checkOrigin may be nil to accept any origin;
// accepting may be nil to always accept.
func NewHandshake(hub *Hub, v TokenVerifier, users UserLookup, opts Options, checkOrigin func(*http.Request) bool, accepting func() bool, log *zap.Logger) *Handshake {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	if accepting == nil {
		accepting = func() bool { return true }
	}
	return &Handshake{
		hub:      hub,
		verifier: v,
		users:    users,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: opts.HandshakeTimeout,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			CheckOrigin:      checkOrigin,
		},
		opts:      opts,
		accepting: accepting,
		log:       log.Named("ws"),
	}
}

func (h *Handshake) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.accepting() {
		reject(w, http.StatusServiceUnavailable, "server is not accepting connections")
		return
	}

	userID, status, msg := h.identify(r)
	if status != 0 {
		h.log.Info("handshake rejected", zap.Int("status", status), zap.String("reason", msg))
		reject(w, status, msg)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	NewClient(h.hub, conn, userID, h.opts, h.log).Run()
}

// identify returns the verified user id, or "" for an anonymous
// connection. A non-zero status rejects the handshake.
func (h *Handshake) identify(r *http.Request) (string, int, string) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.Header.Get("token")
	}
	claimed := r.URL.Query().Get("userId")

	if token == "" {
		if claimed != "" {
			return "", http.StatusUnauthorized, "token required"
		}
		return "", 0, ""
	}

	subject, err := h.verifier.Verify(token)
	if err != nil {
		return "", http.StatusUnauthorized, "invalid token"
	}
	if claimed != "" && claimed != subject {
		return "", http.StatusForbidden, "userId does not match token"
	}
	if h.users != nil {
		ok, err := h.users.UserExists(r.Context(), subject)
		if err != nil {
			h.log.Error("user lookup failed", zap.String("user_id", subject), zap.Error(err))
			return "", http.StatusInternalServerError, "internal error"
		}
		if !ok {
			return "", http.StatusUnauthorized, "unknown user"
		}
	}
	return subject, 0, ""
}

func reject(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": msg})
}
