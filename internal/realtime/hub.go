package realtime

import (
	"github.com/matheus3301/chatd/internal/bus"
	"github.com/matheus3301/chatd/internal/store"
	"go.uber.org/zap"
)

// Hub broadcasts presence changes and delivers best-effort notifications
// through the registry.
type Hub struct {
	reg *Registry
	bus *bus.Bus
	log *zap.Logger
}

// NewHub creates a hub over reg.
func NewHub(reg *Registry, b *bus.Bus, log *zap.Logger) *Hub {
	return &Hub{reg: reg, bus: b, log: log.Named("hub")}
}

// Join registers c and announces the new online set. The displaced
// connection for the same user is returned.
func (h *Hub) Join(c Conn) (Conn, error) {
	prev, snap, err := h.reg.Register(c)
	if err != nil {
		return nil, err
	}
	h.log.Info("connection registered",
		zap.String("user_id", c.UserID()),
		zap.Bool("replaced", prev != nil),
		zap.Int("online", len(snap.Users)))
	h.broadcast(snap)
	return prev, nil
}

// Leave unregisters userID if token still owns the entry. Stale tokens are
// ignored silently.
func (h *Hub) Leave(userID, token, reason string) {
	snap, removed := h.reg.Unregister(userID, token)
	if !removed {
		return
	}
	h.log.Info("connection unregistered",
		zap.String("user_id", userID),
		zap.String("reason", reason),
		zap.Int("online", len(snap.Users)))
	h.bus.Publish(bus.NewEvent(bus.KindConnectionDropped, bus.ConnectionDropped{UserID: userID, Reason: reason}))
	h.broadcast(snap)
}

// Online returns the current online set.
func (h *Hub) Online() Snapshot {
	return h.reg.Snapshot()
}

// IsOnline reports whether userID has a live connection.
func (h *Hub) IsOnline(userID string) bool {
	_, ok := h.reg.Lookup(userID)
	return ok
}

// NotifyNewMessage pushes m to the receiver's live connection, if any.
func (h *Hub) NotifyNewMessage(receiverID string, m store.Message) {
	h.push(receiverID, Notification{Event: EventNewMessage, Data: m})
}

// NotifyMessagesSeen tells senderID that viewerID has read their messages.
func (h *Hub) NotifyMessagesSeen(senderID, viewerID string) {
	h.push(senderID, Notification{Event: EventMessagesSeen, Data: SeenPayload{SeenBy: viewerID}})
}

// Close shuts every live connection.
func (h *Hub) Close() {
	n := h.reg.Len()
	h.reg.Close()
	h.log.Info("registry closed", zap.Int("connections", n))
}

func (h *Hub) push(userID string, n Notification) {
	c, ok := h.reg.Lookup(userID)
	if !ok {
		return
	}
	if !c.Push(n) {
		h.dropped(userID, n.Event)
	}
}

func (h *Hub) broadcast(snap Snapshot) {
	n := Notification{Event: EventOnlineUsers, Data: snap.Users, Seq: snap.Seq}
	for _, c := range h.reg.Connections() {
		if !c.Push(n) {
			h.dropped(c.UserID(), n.Event)
		}
	}
	h.bus.Publish(bus.NewEvent(bus.KindPresenceChanged, bus.PresenceChanged{Seq: snap.Seq, Online: len(snap.Users)}))
}

func (h *Hub) dropped(userID, event string) {
	h.log.Warn("notification dropped", zap.String("user_id", userID), zap.String("event", event))
	h.bus.Publish(bus.NewEvent(bus.KindPushDropped, bus.PushDropped{UserID: userID, Event: event}))
}
