// Package client is a small HTTP client for a running chatd.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/matheus3301/chatd/internal/store"
)

// Client calls the chatd HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New returns a client for baseURL. token may be empty for public calls.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chatd: %d %s", e.Status, e.Message)
}

// Status is the body of GET /api/status.
type Status struct {
	State  string `json:"state"`
	Since  string `json:"since"`
	Online int    `json:"online"`
	Seq    uint64 `json:"seq"`
	PID    int    `json:"pid"`
	Store  string `json:"store"`
}

// Session is the body of signup and login.
type Session struct {
	User    store.User `json:"userData"`
	Token   string     `json:"token"`
	Message string     `json:"message"`
}

// Sidebar is the body of GET /api/messages/users.
type Sidebar struct {
	Users  []store.User   `json:"users"`
	Unseen map[string]int `json:"unseenMessages"`
}

func (c *Client) Status(ctx context.Context) (*Status, error) {
	var out Status
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Signup(ctx context.Context, fullName, email, password string) (*Session, error) {
	var out Session
	in := map[string]string{"fullName": fullName, "email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var out Session
	in := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Online(ctx context.Context) ([]string, error) {
	var out struct {
		Users []string `json:"users"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/online", nil, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

func (c *Client) Send(ctx context.Context, peerID, text string) (*store.Message, error) {
	var out struct {
		Message store.Message `json:"newMessage"`
	}
	in := map[string]string{"text": text}
	if err := c.do(ctx, http.MethodPost, "/api/messages/send/"+peerID, in, &out); err != nil {
		return nil, err
	}
	return &out.Message, nil
}

func (c *Client) Sidebar(ctx context.Context) (*Sidebar, error) {
	var out Sidebar
	if err := c.do(ctx, http.MethodGet, "/api/messages/users", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("token", c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		var e struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &APIError{Status: resp.StatusCode, Message: e.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
