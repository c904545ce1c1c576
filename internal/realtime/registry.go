package realtime

import (
	"errors"
	"sort"
	"sync"
)

// ErrRegistryClosed is returned by Register after Close.
var ErrRegistryClosed = errors.New("realtime: registry closed")

// Conn is a registered live connection. Push must never block.
type Conn interface {
	UserID() string
	Token() string
	Push(n Notification) bool
	Close()
}

// Snapshot is the online set at a point in time. Seq grows with every
// registry mutation.
type Snapshot struct {
	Users []string
	Seq   uint64
}

// Registry maps each online user to its single live connection.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]Conn
	seq    uint64
	closed bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]Conn)}
}

// Register inserts or replaces the entry for c's user. The displaced
// connection, if any, is returned open; closing it is the caller's job.
func (r *Registry) Register(c Conn) (Conn, Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, Snapshot{}, ErrRegistryClosed
	}
	prev := r.conns[c.UserID()]
	r.conns[c.UserID()] = c
	r.seq++
	return prev, r.snapshotLocked(), nil
}

// Unregister removes userID only while its registered connection carries
// token. It reports whether anything was removed.
func (r *Registry) Unregister(userID, token string) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.conns[userID]
	if !ok || cur.Token() != token {
		return r.snapshotLocked(), false
	}
	delete(r.conns, userID)
	r.seq++
	return r.snapshotLocked(), true
}

// Lookup returns the connection registered for userID.
func (r *Registry) Lookup(userID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[userID]
	return c, ok
}

// Snapshot returns the sorted online set.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

// Len returns the number of registered users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Connections returns the registered connections in no particular order.
func (r *Registry) Connections() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Conn, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

// Close empties the registry, closes every connection and refuses further
// registrations.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	conns := make([]Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.conns = make(map[string]Conn)
	r.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

func (r *Registry) snapshotLocked() Snapshot {
	users := make([]string, 0, len(r.conns))
	for id := range r.conns {
		users = append(users, id)
	}
	sort.Strings(users)
	return Snapshot{Users: users, Seq: r.seq}
}
