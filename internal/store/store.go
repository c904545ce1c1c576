package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a user or message does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrEmailTaken is returned when signing up with an email already in use.
	ErrEmailTaken = errors.New("store: email already registered")
)

// MessageStore persists direct messages.
type MessageStore interface {
	// InsertMessage stores m, assigning ID and CreatedAt when they are zero.
	InsertMessage(ctx context.Context, m *Message) error
	GetMessage(ctx context.Context, id string) (*Message, error)
	// FindByParticipants returns every message exchanged between a and b in
	// either direction, oldest first.
	FindByParticipants(ctx context.Context, a, b string) ([]Message, error)
	// MarkManySeen flips every unseen message from sender to receiver and
	// reports how many rows changed.
	MarkManySeen(ctx context.Context, senderID, receiverID string) (int64, error)
	MarkOneSeen(ctx context.Context, id string) error
	CountUnseen(ctx context.Context, senderID, receiverID string) (int, error)
	// UnseenBySender groups the receiver's unseen messages by sender. Senders
	// with nothing unseen are absent.
	UnseenBySender(ctx context.Context, receiverID string) (map[string]int, error)
}

// UserStore persists accounts.
type UserStore interface {
	// CreateUser stores u, assigning ID and CreatedAt. The email is
	// normalised to lower case.
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsersExcept(ctx context.Context, id string) ([]User, error)
	UserExists(ctx context.Context, id string) (bool, error)
	UpdateProfile(ctx context.Context, id string, p ProfileUpdate) (*User, error)
}

// Store is the full persistence surface used by the server.
type Store interface {
	MessageStore
	UserStore
	Ping(ctx context.Context) error
	Engine() string
	Close() error
}
