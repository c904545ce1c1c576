// Package chat implements message delivery, seen-state tracking, unseen
// counts and account management on top of the store.
package chat

import (
	"errors"

	"github.com/matheus3301/chatd/internal/auth"
	"github.com/matheus3301/chatd/internal/bus"
	"github.com/matheus3301/chatd/internal/media"
	"github.com/matheus3301/chatd/internal/store"
	"go.uber.org/zap"
)

var (
	ErrEmptyMessage = errors.New("chat: message needs text or an image")
	ErrUploadFailed = errors.New("chat: image upload failed")
	ErrForbidden    = errors.New("chat: not allowed")
	ErrInvalidInput = errors.New("chat: invalid input")
)

// Notifier delivers best-effort live notifications. Implementations must
// not block and never report failure.
type Notifier interface {
	NotifyNewMessage(receiverID string, m store.Message)
	NotifyMessagesSeen(senderID, viewerID string)
}

// Service is the chat application layer.
type Service struct {
	store    store.Store
	notify   Notifier
	uploader media.Uploader
	tokens   *auth.Tokens
	bus      *bus.Bus
	log      *zap.Logger
}

// NewService wires the chat service.
func NewService(s store.Store, n Notifier, u media.Uploader, t *auth.Tokens, b *bus.Bus, log *zap.Logger) *Service {
	return &Service{
		store:    s,
		notify:   n,
		uploader: u,
		tokens:   t,
		bus:      b,
		log:      log.Named("chat"),
	}
}
