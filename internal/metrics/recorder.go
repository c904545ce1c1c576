package metrics

import (
	"context"

	"github.com/matheus3301/chatd/internal/bus"
	"go.uber.org/zap"
)

// Recorder feeds the business collectors from bus events.
type Recorder struct {
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRecorder creates a recorder.
func NewRecorder(b *bus.Bus, logger *zap.Logger) *Recorder {
	return &Recorder{bus: b, logger: logger}
}

// Start subscribes to every event on the bus.
func (r *Recorder) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	ch, unsub := r.bus.Subscribe("", 256)

	go func() {
		defer close(r.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				r.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the recorder and waits for its loop to exit.
func (r *Recorder) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
}

func (r *Recorder) handleEvent(evt bus.Event) {
	switch p := evt.Payload.(type) {
	case bus.PresenceChanged:
		PresenceBroadcasts.Inc()
		OnlineUsers.Set(float64(p.Online))
	case bus.ConnectionDropped:
		ConnectionsDropped.WithLabelValues(p.Reason).Inc()
	case bus.PushDropped:
		PushesDropped.WithLabelValues(p.Event).Inc()
	case bus.MessageCreated:
		kind := "text"
		if p.HasImage {
			kind = "image"
		}
		MessagesSent.WithLabelValues(kind).Inc()
	case bus.MessagesSeen:
		MessagesSeen.Add(float64(p.Updated))
	case bus.UploadFailed:
		UploadFailures.Inc()
		r.logger.Debug("upload failure recorded", zap.String("user_id", p.UserID))
	}
}
