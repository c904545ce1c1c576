package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matheus3301/chatd/internal/bus"
	"github.com/matheus3301/chatd/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mapVerifier map[string]string

func (m mapVerifier) Verify(token string) (string, error) {
	if id, ok := m[token]; ok {
		return id, nil
	}
	return "", errors.New("bad token")
}

type userSet map[string]bool

func (u userSet) UserExists(_ context.Context, id string) (bool, error) {
	return u[id], nil
}

type wsEnv struct {
	hub       *Hub
	server    *httptest.Server
	accepting atomic.Bool
}

func newWSEnv(t *testing.T) *wsEnv {
	t.Helper()
	env := &wsEnv{hub: NewHub(NewRegistry(), bus.New(), zap.NewNop())}
	env.accepting.Store(true)

	opts := DefaultOptions()
	opts.HandshakeTimeout = 2 * time.Second
	v := mapVerifier{"tok-alice": "alice", "tok-bob": "bob", "tok-ghost": "ghost"}
	users := userSet{"alice": true, "bob": true}
	hs := NewHandshake(env.hub, v, users, opts, nil, env.accepting.Load, zap.NewNop())

	env.server = httptest.NewServer(hs)
	t.Cleanup(func() {
		env.hub.Close()
		env.server.Close()
	})
	return env
}

func (e *wsEnv) url(query string) string {
	return "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws?" + query
}

func (e *wsEnv) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(e.url(query), nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readNotification(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var n map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &n))
	return n
}

// readUntil skips notifications until one with the given event arrives.
func readUntil(t *testing.T, conn *websocket.Conn, event string) map[string]json.RawMessage {
	t.Helper()
	for {
		n := readNotification(t, conn)
		var got string
		require.NoError(t, json.Unmarshal(n["event"], &got))
		if got == event {
			return n
		}
	}
}

func TestHandshakeRejections(t *testing.T) {
	env := newWSEnv(t)

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"invalid token", "token=nope", http.StatusUnauthorized},
		{"userId without token", "userId=alice", http.StatusUnauthorized},
		{"userId mismatch", "token=tok-alice&userId=bob", http.StatusForbidden},
		{"token for missing account", "token=tok-ghost", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(env.url(tt.query), nil)
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
	assert.Equal(t, 0, env.hub.reg.Len(), "rejected handshakes must not register")
}

func TestHandshakeRefusedWhileNotServing(t *testing.T) {
	env := newWSEnv(t)
	env.accepting.Store(false)

	_, resp, err := websocket.DefaultDialer.Dial(env.url("token=tok-alice"), nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestTokenHeaderIsAccepted(t *testing.T) {
	env := newWSEnv(t)

	header := http.Header{"token": []string{"tok-alice"}}
	conn, _, err := websocket.DefaultDialer.Dial(env.url(""), header)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	readUntil(t, conn, EventOnlineUsers)
	assert.True(t, env.hub.IsOnline("alice"))
}

func TestAnonymousConnectionIsNeverRegistered(t *testing.T) {
	env := newWSEnv(t)
	env.dial(t, "")

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, env.hub.reg.Len())
}

func TestOnlineUsersAndNewMessageOverSocket(t *testing.T) {
	env := newWSEnv(t)

	alice := env.dial(t, "token=tok-alice&userId=alice")
	n := readUntil(t, alice, EventOnlineUsers)
	var users []string
	require.NoError(t, json.Unmarshal(n["data"], &users))
	assert.Equal(t, []string{"alice"}, users)

	bob := env.dial(t, "token=tok-bob")
	for {
		n = readUntil(t, alice, EventOnlineUsers)
		require.NoError(t, json.Unmarshal(n["data"], &users))
		if len(users) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"alice", "bob"}, users)

	env.hub.NotifyNewMessage("bob", store.Message{ID: "m1", SenderID: "alice", ReceiverID: "bob", Text: "hi"})
	n = readUntil(t, bob, EventNewMessage)
	var msg store.Message
	require.NoError(t, json.Unmarshal(n["data"], &msg))
	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, "hi", msg.Text)
}

func TestDisconnectUnregisters(t *testing.T) {
	env := newWSEnv(t)

	conn := env.dial(t, "token=tok-alice")
	readUntil(t, conn, EventOnlineUsers)
	require.True(t, env.hub.IsOnline("alice"))

	_ = conn.Close()
	require.Eventually(t, func() bool { return !env.hub.IsOnline("alice") },
		2*time.Second, 10*time.Millisecond)
}

func TestSecondConnectionDisplacesFirst(t *testing.T) {
	env := newWSEnv(t)

	first := env.dial(t, "token=tok-alice")
	readUntil(t, first, EventOnlineUsers)
	second := env.dial(t, "token=tok-alice")
	readUntil(t, second, EventOnlineUsers)

	// The first socket is closed by the server.
	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
			break
		}
	}

	time.Sleep(50 * time.Millisecond)
	assert.True(t, env.hub.IsOnline("alice"), "displaced socket must not evict the new one")
	c, _ := env.hub.reg.Lookup("alice")
	assert.Equal(t, 1, env.hub.reg.Len())
	assert.NotNil(t, c)
}
