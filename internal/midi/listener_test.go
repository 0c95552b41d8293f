package midi

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/jmylchreest/tallyd/internal/config"
	"github.com/jmylchreest/tallyd/internal/transport"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDecoder() Decoder {
	return NewDecoder(config.MIDIConfig{
		CCPlay:      117,
		CCRecord:    118,
		OnThreshold: 1,
	})
}

func TestDecodeControlChanges(t *testing.T) {
	d := testDecoder()
	now := time.Now()

	tests := []struct {
		name       string
		cc, val    uint8
		wantSignal transport.Signal
		wantOn     bool
	}{
		{"play on full value", 117, 127, transport.SignalPlay, true},
		{"play on minimal value", 117, 1, transport.SignalPlay, true},
		{"play off", 117, 0, transport.SignalPlay, false},
		{"record on", 118, 127, transport.SignalRecord, true},
		{"record off", 118, 0, transport.SignalRecord, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := d.Decode(gomidi.ControlChange(0, tt.cc, tt.val), now)
			require.True(t, ok)
			assert.Equal(t, tt.wantSignal, ev.Signal)
			assert.Equal(t, tt.wantOn, ev.On)
			assert.Equal(t, now, ev.ReceivedAt)
		})
	}
}

func TestDecodeThresholdEdge(t *testing.T) {
	// A 64-threshold install: values must cross the threshold to flip.
	d := NewDecoder(config.MIDIConfig{CCPlay: 117, CCRecord: 118, OnThreshold: 64})

	ev, ok := d.Decode(gomidi.ControlChange(0, 117, 63), time.Now())
	require.True(t, ok)
	assert.False(t, ev.On)

	ev, ok = d.Decode(gomidi.ControlChange(0, 117, 64), time.Now())
	require.True(t, ok)
	assert.True(t, ev.On)
}

func TestDecodeRejectsUnconfiguredControllers(t *testing.T) {
	d := testDecoder()

	_, ok := d.Decode(gomidi.ControlChange(0, 7, 100), time.Now())
	assert.False(t, ok, "volume CC must be dropped")
}

func TestDecodeRejectsNonCCMessages(t *testing.T) {
	d := testDecoder()

	_, ok := d.Decode(gomidi.NoteOn(0, 60, 100), time.Now())
	assert.False(t, ok)

	_, ok = d.Decode(gomidi.NoteOff(0, 60), time.Now())
	assert.False(t, ok)

	_, ok = d.Decode(gomidi.Pitchbend(0, 1000), time.Now())
	assert.False(t, ok)
}

func TestListenerDeliversToSink(t *testing.T) {
	delivered := make([]transport.Event, 0, 4)
	l := NewListener(discardLogger(), config.MIDIConfig{CCPlay: 117, CCRecord: 118, OnThreshold: 1},
		func(ev transport.Event) bool {
			delivered = append(delivered, ev)
			return true
		})

	l.handleMessage(gomidi.ControlChange(0, 118, 127), 0)
	l.handleMessage(gomidi.NoteOn(0, 60, 100), 0)
	l.handleMessage(gomidi.ControlChange(0, 117, 0), 0)

	require.Len(t, delivered, 2)
	assert.Equal(t, transport.SignalRecord, delivered[0].Signal)
	assert.True(t, delivered[0].On)
	assert.Equal(t, transport.SignalPlay, delivered[1].Signal)
	assert.False(t, delivered[1].On)
}

func TestListenerToleratesFullSink(t *testing.T) {
	l := NewListener(discardLogger(), config.MIDIConfig{CCPlay: 117, CCRecord: 118, OnThreshold: 1},
		func(ev transport.Event) bool { return false })

	// Must not panic or block when the sink refuses delivery.
	l.handleMessage(gomidi.ControlChange(0, 117, 127), 0)
}
