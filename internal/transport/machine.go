// Package transport reduces discrete DAW transport events to a single
// debounced "session is recording" boolean. The machine is pure logic: it
// holds no goroutines, timers, or clock reads. The owner applies events as
// they arrive, waits out the quiet window, then asks the machine to settle.
package transport

import "time"

// Signal names one of the two transport controls the daemon listens to.
type Signal string

const (
	SignalPlay   Signal = "play"
	SignalRecord Signal = "record"
)

// Event is one hardware control message, already decoded and typed by the
// MIDI listener. Consecutive duplicates are valid input and are absorbed
// without emitting a transition.
type Event struct {
	Signal     Signal
	On         bool
	ReceivedAt time.Time
}

// State is a read-only snapshot for status surfaces. Consumers drive lights
// from Active alone; the per-signal flags are informational.
type State struct {
	PlayActive    bool      `json:"play_active"`
	RecordActive  bool      `json:"record_active"`
	Active        bool      `json:"active"`
	Pending       bool      `json:"pending"`
	LastChangeAt  time.Time `json:"last_change_at"`
	LastEmittedAt time.Time `json:"last_emitted_at"`
}

// Machine combines play and record flags into one debounced boolean.
// Engagement requires both signals on; losing either releases. Not safe for
// concurrent use; the reconciliation loop is the single owner.
type Machine struct {
	playActive    bool
	recordActive  bool
	lastChangeAt  time.Time
	pending       bool
	lastEmitted   bool
	lastEmittedAt time.Time
}

// NewMachine returns a machine with both signals off and "off" as the last
// emitted value, so startup noise that settles to off emits nothing.
func NewMachine() *Machine {
	return &Machine{}
}

// Apply records one event and marks the machine pending settlement. Every
// event, including a duplicate, restarts the owner's quiet window.
func (m *Machine) Apply(ev Event) {
	switch ev.Signal {
	case SignalPlay:
		m.playActive = ev.On
	case SignalRecord:
		m.recordActive = ev.On
	default:
		// Unknown signals are the listener's responsibility to drop; if one
		// slips through it must not corrupt state.
		return
	}
	m.lastChangeAt = ev.ReceivedAt
	m.pending = true
}

// Settle is called once the quiet window has elapsed with no further
// events. It reports (target, emit): emit is true only when the combined
// state differs from the last emitted value, so bursts that return to the
// previous state are absorbed entirely.
func (m *Machine) Settle() (bool, bool) {
	if !m.pending {
		return m.lastEmitted, false
	}
	m.pending = false

	candidate := m.playActive && m.recordActive
	if candidate == m.lastEmitted {
		return m.lastEmitted, false
	}
	m.lastEmitted = candidate
	m.lastEmittedAt = time.Now()
	return candidate, true
}

// Pending reports whether an unsettled change is waiting on the quiet window.
func (m *Machine) Pending() bool { return m.pending }

// Snapshot returns the current state for status surfaces.
func (m *Machine) Snapshot() State {
	return State{
		PlayActive:    m.playActive,
		RecordActive:  m.recordActive,
		Active:        m.lastEmitted,
		Pending:       m.pending,
		LastChangeAt:  m.lastChangeAt,
		LastEmittedAt: m.lastEmittedAt,
	}
}
