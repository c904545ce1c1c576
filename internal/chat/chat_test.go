package chat

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/chatd/internal/auth"
	"github.com/matheus3301/chatd/internal/bus"
	"github.com/matheus3301/chatd/internal/store"
	"go.uber.org/zap"
)

type pushed struct {
	event string
	to    string
	msg   store.Message
	by    string
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []pushed
}

func (n *recordingNotifier) NotifyNewMessage(receiverID string, m store.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, pushed{event: "newMessage", to: receiverID, msg: m})
}

func (n *recordingNotifier) NotifyMessagesSeen(senderID, viewerID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, pushed{event: "messagesSeen", to: senderID, by: viewerID})
}

func (n *recordingNotifier) count(event string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, p := range n.calls {
		if p.event == event {
			c++
		}
	}
	return c
}

type fakeUploader struct {
	err error
}

func (f fakeUploader) Upload(context.Context, string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "/uploads/img.png", nil
}

type fixture struct {
	svc      *Service
	store    *store.DB
	notifier *recordingNotifier
	bus      *bus.Bus
}

func newFixture(t *testing.T, up fakeUploader) *fixture {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	tokens, err := auth.NewTokens("test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	n := &recordingNotifier{}
	b := bus.New()
	return &fixture{
		svc:      NewService(db, n, up, tokens, b, zap.NewNop()),
		store:    db,
		notifier: n,
		bus:      b,
	}
}

func (f *fixture) user(t *testing.T, name string) string {
	t.Helper()
	u, _, err := f.svc.Signup(context.Background(), SignupInput{
		FullName: name,
		Email:    name + "@example.com",
		Password: "password",
	})
	if err != nil {
		t.Fatal(err)
	}
	return u.ID
}

func TestSendTextOnly(t *testing.T) {
	f := newFixture(t, fakeUploader{})
	ctx := context.Background()
	a, b := f.user(t, "a"), f.user(t, "b")

	m, err := f.svc.Send(ctx, a, b, SendInput{Text: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if m.Text != "hi" || m.Image != "" || m.Seen {
		t.Errorf("message = %+v", m)
	}

	msgs, _ := f.store.FindByParticipants(ctx, a, b)
	if len(msgs) != 1 || msgs[0].ID != m.ID {
		t.Fatalf("stored = %+v", msgs)
	}
	if f.notifier.count("newMessage") != 1 || f.notifier.calls[0].to != b {
		t.Errorf("push = %+v, want one newMessage to receiver", f.notifier.calls)
	}
}

func TestSendEmptyIsRejectedBeforePersistence(t *testing.T) {
	f := newFixture(t, fakeUploader{})
	ctx := context.Background()
	a, b := f.user(t, "a"), f.user(t, "b")

	for _, in := range []SendInput{{}, {Text: "   "}, {Image: "   "}, {Text: "\n", Image: " \t"}} {
		if _, err := f.svc.Send(ctx, a, b, in); !errors.Is(err, ErrEmptyMessage) {
			t.Errorf("Send(%+v) err = %v, want ErrEmptyMessage", in, err)
		}
	}
	msgs, _ := f.store.FindByParticipants(ctx, a, b)
	if len(msgs) != 0 {
		t.Errorf("empty send persisted %d messages", len(msgs))
	}
	if len(f.notifier.calls) != 0 {
		t.Error("empty send pushed a notification")
	}
}

func TestSendDropsBlankImage(t *testing.T) {
	f := newFixture(t, fakeUploader{})
	ctx := context.Background()
	a, b := f.user(t, "a"), f.user(t, "b")

	if _, err := f.svc.Send(ctx, a, b, SendInput{Text: "hi", Image: "   "}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	msgs, err := f.store.FindByParticipants(ctx, a, b)
	if err != nil {
		t.Fatalf("FindByParticipants: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Image != "" {
		t.Errorf("stored %+v, want one text-only message", msgs)
	}
}

func TestSendToUnknownReceiver(t *testing.T) {
	f := newFixture(t, fakeUploader{})
	a := f.user(t, "a")

	if _, err := f.svc.Send(context.Background(), a, "ghost", SendInput{Text: "hi"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSendUploadsDataURI(t *testing.T) {
	f := newFixture(t, fakeUploader{})
	a, b := f.user(t, "a"), f.user(t, "b")

	m, err := f.svc.Send(context.Background(), a, b, SendInput{Image: "data:image/png;base64,AAAA"})
	if err != nil {
		t.Fatal(err)
	}
	if m.Image != "/uploads/img.png" {
		t.Errorf("image = %q", m.Image)
	}

	m, err = f.svc.Send(context.Background(), a, b, SendInput{Image: "https://cdn.example.com/x.png"})
	if err != nil {
		t.Fatal(err)
	}
	if m.Image != "https://cdn.example.com/x.png" {
		t.Errorf("hosted image rewritten to %q", m.Image)
	}
}

func TestUploadFailureDegradesToText(t *testing.T) {
	f := newFixture(t, fakeUploader{err: errors.New("disk full")})
	ctx := context.Background()
	a, b := f.user(t, "a"), f.user(t, "b")
	failures, unsub := f.bus.Subscribe(bus.KindUploadFailed, 4)
	defer unsub()

	m, err := f.svc.Send(ctx, a, b, SendInput{Text: "look", Image: "data:image/png;base64,AAAA"})
	if err != nil {
		t.Fatal(err)
	}
	if m.Text != "look" || m.Image != "" {
		t.Errorf("message = %+v, want text only", m)
	}
	select {
	case <-failures:
	case <-time.After(time.Second):
		t.Error("no upload failure event")
	}

	if _, err := f.svc.Send(ctx, a, b, SendInput{Image: "data:image/png;base64,AAAA"}); !errors.Is(err, ErrUploadFailed) {
		t.Errorf("image-only failure err = %v, want ErrUploadFailed", err)
	}
	msgs, _ := f.store.FindByParticipants(ctx, a, b)
	if len(msgs) != 1 {
		t.Errorf("stored %d messages, want 1", len(msgs))
	}
}

func TestMarkConversationSeenIsIdempotent(t *testing.T) {
	f := newFixture(t, fakeUploader{})
	ctx := context.Background()
	a, b := f.user(t, "a"), f.user(t, "b")
	for i := 0; i < 3; i++ {
		if _, err := f.svc.Send(ctx, a, b, SendInput{Text: "x"}); err != nil {
			t.Fatal(err)
		}
	}

	n, err := f.svc.MarkConversationSeen(ctx, b, a)
	if err != nil || n != 3 {
		t.Fatalf("first mark = %d, %v, want 3", n, err)
	}
	n, err = f.svc.MarkConversationSeen(ctx, b, a)
	if err != nil || n != 0 {
		t.Fatalf("second mark = %d, %v, want 0", n, err)
	}
	if got := f.notifier.count("messagesSeen"); got != 1 {
		t.Errorf("messagesSeen pushes = %d, want 1", got)
	}
	for _, p := range f.notifier.calls {
		if p.event == "messagesSeen" && (p.to != a || p.by != b) {
			t.Errorf("messagesSeen = %+v, want to=a by=b", p)
		}
	}

	counts, _ := f.svc.UnseenCounts(ctx, b)
	if len(counts) != 0 {
		t.Errorf("unseen after seen = %v, want empty", counts)
	}
}

func TestMarkOneSeen(t *testing.T) {
	f := newFixture(t, fakeUploader{})
	ctx := context.Background()
	a, b := f.user(t, "a"), f.user(t, "b")
	m, _ := f.svc.Send(ctx, a, b, SendInput{Text: "x"})

	if err := f.svc.MarkOneSeen(ctx, a, m.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("sender ack err = %v, want ErrForbidden", err)
	}
	if err := f.svc.MarkOneSeen(ctx, b, m.ID); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.MarkOneSeen(ctx, b, m.ID); err != nil {
		t.Fatalf("repeat ack: %v", err)
	}
	if err := f.svc.MarkOneSeen(ctx, b, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("unknown id err = %v, want ErrNotFound", err)
	}
	if got := f.notifier.count("messagesSeen"); got != 0 {
		t.Errorf("single ack pushed %d messagesSeen, want 0", got)
	}
}

func TestConversationMarksSeen(t *testing.T) {
	f := newFixture(t, fakeUploader{})
	ctx := context.Background()
	a, b := f.user(t, "a"), f.user(t, "b")
	_, _ = f.svc.Send(ctx, a, b, SendInput{Text: "1"})
	_, _ = f.svc.Send(ctx, b, a, SendInput{Text: "2"})

	msgs, err := f.svc.Conversation(ctx, b, a)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].Text != "1" || msgs[1].Text != "2" {
		t.Fatalf("conversation = %+v", msgs)
	}
	if !msgs[0].Seen {
		t.Error("message from peer should be seen after opening")
	}
	if msgs[1].Seen {
		t.Error("viewer's own message must stay unseen")
	}
}

func TestUnseenCountsAreSparse(t *testing.T) {
	f := newFixture(t, fakeUploader{})
	ctx := context.Background()
	me, x, y, z := f.user(t, "me"), f.user(t, "x"), f.user(t, "y"), f.user(t, "z")
	_, _ = f.svc.Send(ctx, x, me, SendInput{Text: "1"})
	_, _ = f.svc.Send(ctx, x, me, SendInput{Text: "2"})
	_, _ = f.svc.Send(ctx, y, me, SendInput{Text: "3"})
	_, _ = f.svc.Send(ctx, me, z, SendInput{Text: "4"})
	_, _ = f.svc.Send(ctx, me, me, SendInput{Text: "note to self"})

	counts, err := f.svc.UnseenCounts(ctx, me)
	if err != nil {
		t.Fatal(err)
	}
	if len(counts) != 2 || counts[x] != 2 || counts[y] != 1 {
		t.Errorf("counts = %v, want x:2 y:1", counts)
	}

	n, err := f.svc.CountUnseen(ctx, me, x)
	if err != nil || n != 2 {
		t.Errorf("CountUnseen = %d, %v, want 2", n, err)
	}

	users, _, err := f.svc.Sidebar(ctx, me)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 3 {
		t.Errorf("sidebar users = %d, want 3", len(users))
	}
}

func TestConcurrentSendsKeepPerSenderOrder(t *testing.T) {
	f := newFixture(t, fakeUploader{})
	ctx := context.Background()
	a, b := f.user(t, "a"), f.user(t, "b")

	const n = 20
	var wg sync.WaitGroup
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		wg.Add(1)
		go func(from, to string) {
			defer wg.Done()
			for i := 0; i < n; i++ {
				if _, err := f.svc.Send(ctx, from, to, SendInput{Text: string(rune('a' + i))}); err != nil {
					t.Error(err)
					return
				}
			}
		}(pair[0], pair[1])
	}
	wg.Wait()

	msgs, err := f.svc.Conversation(ctx, a, b)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2*n {
		t.Fatalf("got %d messages, want %d", len(msgs), 2*n)
	}
	next := map[string]int{}
	for _, m := range msgs {
		if want := string(rune('a' + next[m.SenderID])); m.Text != want {
			t.Fatalf("out of order for %s: got %q want %q", m.SenderID, m.Text, want)
		}
		next[m.SenderID]++
	}
}
