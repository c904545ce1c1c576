package store

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// User is an account. PasswordHash never leaves the server.
type User struct {
	ID           string    `json:"_id"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	Bio          string    `json:"bio,omitempty"`
	ProfilePic   string    `json:"profilePic,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Message is a persisted direct message.
type Message struct {
	ID         string    `json:"_id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text,omitempty"`
	Image      string    `json:"image,omitempty"`
	Seen       bool      `json:"seen"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ProfileUpdate carries the editable profile fields. Empty fields are left
// unchanged.
type ProfileUpdate struct {
	FullName   string
	Bio        string
	ProfilePic string
}

// NewMessageID returns a lexically time-ordered message id.
func NewMessageID() string {
	return ulid.Make().String()
}

// NewUserID returns a random user id.
func NewUserID() string {
	return uuid.NewString()
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func prepareMessage(m *Message) {
	if m.ID == "" {
		m.ID = NewMessageID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
}

func prepareUser(u *User) {
	if u.ID == "" {
		u.ID = NewUserID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	u.Email = NormalizeEmail(u.Email)
}
