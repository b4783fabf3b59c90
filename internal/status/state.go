package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/duochat/internal/bus"
)

// State is the client's view of its connection to the store.
type State string

const (
	Connecting State = "CONNECTING"
	Online     State = "ONLINE"
	Offline    State = "OFFLINE"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Connecting: {Online, Offline},
	Online:     {Offline},
	Offline:    {Connecting, Online},
}

// Machine tracks connectivity. It is the online/offline signal that gates
// user-initiated and periodic writes.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Connecting state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Connecting,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Online reports whether writes should be attempted.
func (m *Machine) Online() bool {
	return m.Current() == Online
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      bus.ConnChanged,
			Timestamp: time.Now(),
			Payload: StatusChange{
				From: from,
				To:   to,
			},
		})
	}
	return nil
}

// Move transitions to to unless already there. Disallowed moves are ignored.
// It reports whether the state changed.
func (m *Machine) Move(to State) bool {
	if m.Current() == to {
		return false
	}
	return m.Transition(to) == nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
