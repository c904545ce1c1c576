package bus

import "time"

// Event kinds published by the chat services and the presence hub.
const (
	KindPresenceChanged   = "presence.changed"
	KindConnectionDropped = "presence.connection_dropped"
	KindMessageCreated    = "message.created"
	KindMessagesSeen      = "message.seen"
	KindPushDropped       = "message.push_dropped"
	KindUploadFailed      = "media.upload_failed"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// NewEvent stamps an event with the current time.
func NewEvent(kind string, payload any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}

// PresenceChanged is the payload of KindPresenceChanged.
type PresenceChanged struct {
	Seq    uint64
	Online int
}

// MessagesSeen is the payload of KindMessagesSeen.
type MessagesSeen struct {
	ViewerID string
	PeerID   string
	Updated  int64
}

// ConnectionDropped is the payload of KindConnectionDropped.
type ConnectionDropped struct {
	UserID string
	Reason string
}

// MessageCreated is the payload of KindMessageCreated.
type MessageCreated struct {
	MessageID  string
	SenderID   string
	ReceiverID string
	HasImage   bool
}

// PushDropped is the payload of KindPushDropped.
type PushDropped struct {
	UserID string
	Event  string
}

// UploadFailed is the payload of KindUploadFailed.
type UploadFailed struct {
	UserID string
	Err    string
}
