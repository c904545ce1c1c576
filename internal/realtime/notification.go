package realtime

// Events pushed to live connections.
const (
	EventOnlineUsers  = "getOnlineUsers"
	EventNewMessage   = "newMessage"
	EventMessagesSeen = "messagesSeen"
)

// Notification is a single JSON text frame sent to a client.
type Notification struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
	Seq   uint64 `json:"seq,omitempty"`
}

// SeenPayload is the data of an EventMessagesSeen notification.
type SeenPayload struct {
	SeenBy string `json:"seenBy"`
}

// presenceGate drops online-set snapshots that are not newer than the last
// one written. It is owned by a single write pump.
type presenceGate struct {
	last uint64
}

func (g *presenceGate) admit(n Notification) bool {
	if n.Event != EventOnlineUsers {
		return true
	}
	if n.Seq <= g.last {
		return false
	}
	g.last = n.Seq
	return true
}
