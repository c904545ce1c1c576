package realtime

import "sync"

type fakeConn struct {
	user  string
	token string
	full  bool

	mu     sync.Mutex
	got    []Notification
	closed bool
}

func newFake(user, token string) *fakeConn {
	return &fakeConn{user: user, token: token}
}

func (f *fakeConn) UserID() string { return f.user }
func (f *fakeConn) Token() string  { return f.token }

func (f *fakeConn) Push(n Notification) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full || f.closed {
		return false
	}
	f.got = append(f.got, n)
	return true
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) events(event string) []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Notification
	for _, n := range f.got {
		if n.Event == event {
			out = append(out, n)
		}
	}
	return out
}
