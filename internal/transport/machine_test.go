package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ev(signal Signal, on bool) Event {
	return Event{Signal: signal, On: on, ReceivedAt: time.Now()}
}

// settle applies a sequence of events then settles once, mirroring the
// reconciliation loop's quiet-window behavior.
func settle(m *Machine, evs ...Event) (bool, bool) {
	for _, e := range evs {
		m.Apply(e)
	}
	return m.Settle()
}

func TestEngageRequiresBothSignals(t *testing.T) {
	tests := []struct {
		name       string
		events     []Event
		wantTarget bool
		wantEmit   bool
	}{
		{"play alone", []Event{ev(SignalPlay, true)}, false, false},
		{"record alone", []Event{ev(SignalRecord, true)}, false, false},
		{"both on", []Event{ev(SignalRecord, true), ev(SignalPlay, true)}, true, true},
		{"both on reversed order", []Event{ev(SignalPlay, true), ev(SignalRecord, true)}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine()
			target, emit := settle(m, tt.events...)
			assert.Equal(t, tt.wantTarget, target)
			assert.Equal(t, tt.wantEmit, emit)
		})
	}
}

func TestLosingEitherSignalReleases(t *testing.T) {
	for _, signal := range []Signal{SignalPlay, SignalRecord} {
		t.Run(string(signal), func(t *testing.T) {
			m := NewMachine()
			_, emit := settle(m, ev(SignalPlay, true), ev(SignalRecord, true))
			require.True(t, emit)

			target, emit := settle(m, ev(signal, false))
			assert.True(t, emit)
			assert.False(t, target)
		})
	}
}

func TestDuplicateEventsAbsorbed(t *testing.T) {
	m := NewMachine()
	_, emit := settle(m, ev(SignalPlay, true), ev(SignalRecord, true))
	require.True(t, emit)

	// Any number of repeats with no intervening opposite value: no emission.
	for i := 0; i < 5; i++ {
		_, emit = settle(m, ev(SignalPlay, true))
		assert.False(t, emit, "repeat %d must not emit", i)
	}
}

func TestFlickerWithinWindowSuppressed(t *testing.T) {
	m := NewMachine()
	_, emit := settle(m, ev(SignalPlay, true), ev(SignalRecord, true))
	require.True(t, emit)

	// PLAY drops and returns before the window settles: one Settle sees the
	// net result, which matches the last emitted value.
	target, emit := settle(m, ev(SignalPlay, false), ev(SignalPlay, true))
	assert.False(t, emit)
	assert.True(t, target)
}

func TestBurstCoalescesToSingleTransition(t *testing.T) {
	m := NewMachine()

	// RECORD=ON then PLAY=ON inside one window emits exactly one transition.
	m.Apply(ev(SignalRecord, true))
	m.Apply(ev(SignalPlay, true))
	target, emit := m.Settle()
	assert.True(t, emit)
	assert.True(t, target)

	// The settled machine is quiet until the next event.
	_, emit = m.Settle()
	assert.False(t, emit)
}

func TestSettleWithoutPendingEmitsNothing(t *testing.T) {
	m := NewMachine()
	target, emit := m.Settle()
	assert.False(t, emit)
	assert.False(t, target)
}

func TestCombinedMatchesLatestSignalValues(t *testing.T) {
	// Property from the contract: after settling any sequence, the active
	// state equals play AND record computed from each signal's latest value.
	sequences := [][]Event{
		{ev(SignalPlay, true), ev(SignalPlay, false), ev(SignalRecord, true)},
		{ev(SignalRecord, true), ev(SignalPlay, true), ev(SignalRecord, false), ev(SignalRecord, true)},
		{ev(SignalPlay, true), ev(SignalRecord, true), ev(SignalPlay, false), ev(SignalPlay, true)},
		{ev(SignalRecord, false), ev(SignalPlay, false)},
	}

	for i, seq := range sequences {
		m := NewMachine()
		var play, record bool
		for _, e := range seq {
			m.Apply(e)
			if e.Signal == SignalPlay {
				play = e.On
			} else {
				record = e.On
			}
		}
		m.Settle()
		assert.Equal(t, play && record, m.Snapshot().Active, "sequence %d", i)
	}
}

func TestUnknownSignalIgnored(t *testing.T) {
	m := NewMachine()
	m.Apply(Event{Signal: "pitchbend", On: true, ReceivedAt: time.Now()})
	assert.False(t, m.Pending())

	snap := m.Snapshot()
	assert.False(t, snap.PlayActive)
	assert.False(t, snap.RecordActive)
}

func TestSnapshot(t *testing.T) {
	m := NewMachine()
	at := time.Now()
	m.Apply(Event{Signal: SignalRecord, On: true, ReceivedAt: at})

	snap := m.Snapshot()
	assert.True(t, snap.RecordActive)
	assert.False(t, snap.PlayActive)
	assert.False(t, snap.Active)
	assert.True(t, snap.Pending)
	assert.Equal(t, at, snap.LastChangeAt)

	m.Apply(Event{Signal: SignalPlay, On: true, ReceivedAt: at.Add(10 * time.Millisecond)})
	m.Settle()

	snap = m.Snapshot()
	assert.True(t, snap.Active)
	assert.False(t, snap.Pending)
	assert.False(t, snap.LastEmittedAt.IsZero())
}
