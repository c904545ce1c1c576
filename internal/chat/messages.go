package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/matheus3301/chatd/internal/bus"
	"github.com/matheus3301/chatd/internal/media"
	"github.com/matheus3301/chatd/internal/store"
	"go.uber.org/zap"
)

// SendInput is the body of a send request. Image is either a data URI or
// an already hosted URL.
type SendInput struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

// Send persists a message from senderID to receiverID and pushes it to the
// receiver if they are online.
func (s *Service) Send(ctx context.Context, senderID, receiverID string, in SendInput) (*store.Message, error) {
	hasText := strings.TrimSpace(in.Text) != ""
	image := strings.TrimSpace(in.Image)
	if !hasText && image == "" {
		return nil, ErrEmptyMessage
	}

	ok, err := s.store.UserExists(ctx, receiverID)
	if err != nil {
		return nil, fmt.Errorf("lookup receiver: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("receiver %s: %w", receiverID, store.ErrNotFound)
	}

	if media.IsDataURI(image) {
		url, err := s.uploader.Upload(ctx, image)
		if err != nil {
			s.log.Warn("image upload failed, sending text only",
				zap.String("sender_id", senderID), zap.Error(err))
			s.bus.Publish(bus.NewEvent(bus.KindUploadFailed, bus.UploadFailed{UserID: senderID, Err: err.Error()}))
			if !hasText {
				return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
			}
			url = ""
		}
		image = url
	}

	m := &store.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       in.Text,
		Image:      image,
	}
	if err := s.store.InsertMessage(ctx, m); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	s.notify.NotifyNewMessage(receiverID, *m)
	s.bus.Publish(bus.NewEvent(bus.KindMessageCreated, bus.MessageCreated{
		MessageID:  m.ID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		HasImage:   m.Image != "",
	}))
	return m, nil
}

// MarkConversationSeen marks everything peerID sent to viewerID as seen and
// tells the peer when anything changed.
func (s *Service) MarkConversationSeen(ctx context.Context, viewerID, peerID string) (int64, error) {
	n, err := s.store.MarkManySeen(ctx, peerID, viewerID)
	if err != nil {
		return 0, fmt.Errorf("mark conversation seen: %w", err)
	}
	if n > 0 {
		s.notify.NotifyMessagesSeen(peerID, viewerID)
		s.bus.Publish(bus.NewEvent(bus.KindMessagesSeen, bus.MessagesSeen{ViewerID: viewerID, PeerID: peerID, Updated: n}))
	}
	return n, nil
}

// MarkOneSeen acknowledges a single message. Only its receiver may do so.
func (s *Service) MarkOneSeen(ctx context.Context, viewerID, messageID string) error {
	m, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return fmt.Errorf("message %s: %w", messageID, err)
	}
	if m.ReceiverID != viewerID {
		return ErrForbidden
	}
	if m.Seen {
		return nil
	}
	if err := s.store.MarkOneSeen(ctx, messageID); err != nil {
		return fmt.Errorf("mark message seen: %w", err)
	}
	s.bus.Publish(bus.NewEvent(bus.KindMessagesSeen, bus.MessagesSeen{ViewerID: viewerID, PeerID: m.SenderID, Updated: 1}))
	return nil
}

// Conversation marks the conversation with peerID seen and returns its
// full history, oldest first.
func (s *Service) Conversation(ctx context.Context, viewerID, peerID string) ([]store.Message, error) {
	if _, err := s.MarkConversationSeen(ctx, viewerID, peerID); err != nil {
		return nil, err
	}
	msgs, err := s.store.FindByParticipants(ctx, viewerID, peerID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	return msgs, nil
}

// CountUnseen counts what peerID sent viewerID that is still unseen.
func (s *Service) CountUnseen(ctx context.Context, viewerID, peerID string) (int, error) {
	n, err := s.store.CountUnseen(ctx, peerID, viewerID)
	if err != nil {
		return 0, fmt.Errorf("count unseen: %w", err)
	}
	return n, nil
}

// UnseenCounts maps each known peer to the number of unseen messages they
// sent requesterID. Peers with nothing unseen are omitted.
func (s *Service) UnseenCounts(ctx context.Context, requesterID string) (map[string]int, error) {
	_, counts, err := s.Sidebar(ctx, requesterID)
	return counts, err
}

// Sidebar returns every other user together with the unseen map.
func (s *Service) Sidebar(ctx context.Context, requesterID string) ([]store.User, map[string]int, error) {
	users, err := s.store.ListUsersExcept(ctx, requesterID)
	if err != nil {
		return nil, nil, fmt.Errorf("list users: %w", err)
	}
	raw, err := s.store.UnseenBySender(ctx, requesterID)
	if err != nil {
		return nil, nil, fmt.Errorf("unseen by sender: %w", err)
	}

	counts := make(map[string]int, len(raw))
	for _, u := range users {
		if n := raw[u.ID]; n > 0 {
			counts[u.ID] = n
		}
	}
	return users, counts, nil
}
