// Package midi is the inbound transport boundary: it owns the MIDI input
// port the DAW sends its transport Control Change messages to, decodes them
// into typed transport events, and delivers them to the reconciliation
// loop. Everything that is not a configured CC message is dropped here with
// a diagnostic; malformed input never reaches the state machine.
package midi

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/jmylchreest/tallyd/internal/config"
	"github.com/jmylchreest/tallyd/internal/transport"
)

// Decoder maps Control Change messages to transport events using the
// configured controller numbers and ON threshold.
type Decoder struct {
	ccPlay      uint8
	ccRecord    uint8
	onThreshold uint8
}

// NewDecoder builds a decoder from the MIDI configuration.
func NewDecoder(cfg config.MIDIConfig) Decoder {
	threshold := cfg.OnThreshold
	if threshold <= 0 {
		threshold = config.DefaultOnThreshold
	}
	return Decoder{
		ccPlay:      uint8(cfg.CCPlay),
		ccRecord:    uint8(cfg.CCRecord),
		onThreshold: uint8(threshold),
	}
}

// Decode returns the transport event carried by msg, or false when the
// message is not one of the configured Control Changes. A value at or above
// the threshold means ON, below means OFF.
func (d Decoder) Decode(msg gomidi.Message, at time.Time) (transport.Event, bool) {
	var ch, cc, val uint8
	if !msg.GetControlChange(&ch, &cc, &val) {
		return transport.Event{}, false
	}

	var signal transport.Signal
	switch cc {
	case d.ccPlay:
		signal = transport.SignalPlay
	case d.ccRecord:
		signal = transport.SignalRecord
	default:
		return transport.Event{}, false
	}

	return transport.Event{
		Signal:     signal,
		On:         val >= d.onThreshold,
		ReceivedAt: at,
	}, true
}

// Sink receives decoded events. It must not block; returning false means
// the event was dropped.
type Sink func(transport.Event) bool

// Listener owns the MIDI driver and input port for the process lifetime.
type Listener struct {
	logger  *slog.Logger
	cfg     config.MIDIConfig
	decoder Decoder
	sink    Sink

	drv  *rtmididrv.Driver
	in   drivers.In
	stop func()
}

// NewListener creates a listener that delivers decoded events to sink.
func NewListener(logger *slog.Logger, cfg config.MIDIConfig, sink Sink) *Listener {
	return &Listener{
		logger:  logger,
		cfg:     cfg,
		decoder: NewDecoder(cfg),
		sink:    sink,
	}
}

// Start opens the input port and begins listening. An existing port whose
// name contains the configured name (case-insensitive) is preferred; when
// none matches, a virtual input port is created with the exact configured
// name so the DAW can route to it. Failure here is the one process-fatal
// condition: without the inbound transport the daemon has no purpose.
func (l *Listener) Start() error {
	drv, err := rtmididrv.New()
	if err != nil {
		return fmt.Errorf("failed to initialize MIDI driver: %w", err)
	}
	l.drv = drv

	in, err := l.openPort()
	if err != nil {
		_ = drv.Close()
		return err
	}
	l.in = in

	stop, err := gomidi.ListenTo(in, l.handleMessage, gomidi.HandleError(func(listenErr error) {
		l.logger.Error("midi: listener error", "port", in.String(), "error", listenErr)
	}))
	if err != nil {
		_ = in.Close()
		_ = drv.Close()
		return fmt.Errorf("failed to start MIDI listener on %q: %w", in.String(), err)
	}
	l.stop = stop

	l.logger.Info("midi: listening",
		"port", in.String(),
		"cc_play", l.cfg.CCPlay,
		"cc_record", l.cfg.CCRecord,
		"on_threshold", l.cfg.OnThreshold)
	return nil
}

// openPort finds a matching hardware port or falls back to a virtual one.
func (l *Listener) openPort() (drivers.In, error) {
	ins, err := l.drv.Ins()
	if err != nil {
		return nil, fmt.Errorf("failed to list MIDI inputs: %w", err)
	}

	want := strings.ToLower(l.cfg.PortName)
	for _, in := range ins {
		if !strings.Contains(strings.ToLower(in.String()), want) {
			continue
		}
		if err := in.Open(); err != nil {
			return nil, fmt.Errorf("failed to open MIDI input %q: %w", in.String(), err)
		}
		return in, nil
	}

	l.logger.Info("midi: no matching input port, creating virtual port", "name", l.cfg.PortName)
	in, err := l.drv.OpenVirtualIn(l.cfg.PortName)
	if err != nil {
		return nil, fmt.Errorf("failed to create virtual MIDI port %q: %w", l.cfg.PortName, err)
	}
	return in, nil
}

// handleMessage runs on the driver's listener goroutine; it must stay
// non-blocking, so delivery into the loop is a buffered non-blocking send.
func (l *Listener) handleMessage(msg gomidi.Message, timestampms int32) {
	ev, ok := l.decoder.Decode(msg, time.Now())
	if !ok {
		l.logger.Debug("midi: ignoring message", "msg", msg.String())
		return
	}

	l.logger.Debug("midi: control event", "signal", ev.Signal, "on", ev.On)
	if !l.sink(ev) {
		l.logger.Warn("midi: event dropped, reconcile buffer full", "signal", ev.Signal, "on", ev.On)
	}
}

// Close stops the listener and releases the port and driver.
func (l *Listener) Close() error {
	if l.stop != nil {
		l.stop()
		l.stop = nil
	}
	if l.in != nil {
		_ = l.in.Close()
		l.in = nil
	}
	if l.drv != nil {
		if err := l.drv.Close(); err != nil {
			return fmt.Errorf("failed to close MIDI driver: %w", err)
		}
		l.drv = nil
	}
	l.logger.Info("midi: closed")
	return nil
}
