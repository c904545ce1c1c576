package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/chatd/internal/bus"
)

// State represents the server lifecycle state.
type State string

const (
	Starting State = "STARTING"
	Serving  State = "SERVING"
	Draining State = "DRAINING"
	Stopped  State = "STOPPED"
	Failed   State = "FAILED"
)

// KindStatusChanged is published on every successful transition.
const KindStatusChanged = "server.status_changed"

var validTransitions = map[State][]State{
	Starting: {Serving, Failed},
	Serving:  {Draining, Failed},
	Draining: {Stopped, Failed},
	Failed:   {Stopped},
	Stopped:  {},
}

// Machine tracks and enforces server lifecycle transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	since   time.Time
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Starting state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Starting,
		since:   time.Now(),
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Since returns when the current state was entered.
func (m *Machine) Since() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.since
}

// Accepting reports whether new live connections should be admitted.
func (m *Machine) Accepting() bool {
	return m.Current() == Serving
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !slices.Contains(validTransitions[m.current], to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	m.since = time.Now()
	m.bus.Publish(bus.NewEvent(KindStatusChanged, StatusChange{From: from, To: to}))
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
