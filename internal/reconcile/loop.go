// Package reconcile runs the orchestration loop between the MIDI listener
// and the actuator. A single goroutine consumes control events in arrival
// order, owns the debounce timer, and hands settled transitions to a
// dispatch stage that actuates one batch at a time, conflating intermediate
// targets so the lights converge on the most recent truth.
package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/tallyd/internal/actuator"
	"github.com/jmylchreest/tallyd/internal/config"
	"github.com/jmylchreest/tallyd/internal/events"
	"github.com/jmylchreest/tallyd/internal/transport"
)

// eventBuffer bounds the inbound channel so a stalled loop sheds load at
// the listener instead of backing up into the MIDI callback.
const eventBuffer = 64

// Dispatcher actuates one fleet-wide target. Satisfied by *actuator.Actuator.
type Dispatcher interface {
	SetAll(ctx context.Context, target bool) actuator.Batch
}

// Status is the loop's state for the daemon's status surfaces.
type Status struct {
	Transport transport.State `json:"transport"`
	LastBatch *actuator.Batch `json:"last_batch,omitempty"`
}

// Loop drives the transport machine and the dispatch stage.
type Loop struct {
	logger     *slog.Logger
	bus        *events.Bus
	dispatcher Dispatcher
	debounce   time.Duration

	events  chan transport.Event
	targets chan bool

	// mu guards the machine and lastBatch: the machine is only mutated by
	// the loop goroutine, but status surfaces snapshot it concurrently.
	mu        sync.Mutex
	machine   *transport.Machine
	lastBatch *actuator.Batch
}

// New creates a loop around a fresh transport machine.
func New(logger *slog.Logger, bus *events.Bus, dispatcher Dispatcher, debounce time.Duration) *Loop {
	if debounce <= 0 {
		debounce = config.DefaultDebounceWindow
	}
	return &Loop{
		logger:     logger,
		bus:        bus,
		dispatcher: dispatcher,
		debounce:   debounce,
		events:     make(chan transport.Event, eventBuffer),
		targets:    make(chan bool, 1),
		machine:    transport.NewMachine(),
	}
}

// Submit delivers one control event without blocking. It reports false when
// the buffer is full; the caller drops the event with a diagnostic.
func (l *Loop) Submit(ev transport.Event) bool {
	select {
	case l.events <- ev:
		return true
	default:
		return false
	}
}

// Snapshot returns the current transport state and the last completed batch.
func (l *Loop) Snapshot() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Status{
		Transport: l.machine.Snapshot(),
		LastBatch: l.lastBatch,
	}
}

// Run consumes events until ctx is cancelled. Every event restarts the
// quiet window; when the window elapses the machine settles, and an emitted
// transition is pushed to the dispatch stage. The loop never waits on
// actuation, so new events are accepted while a batch is in flight.
func (l *Loop) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.dispatch(ctx)
	}()

	timer := time.NewTimer(l.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	l.logger.Info("reconcile: loop started", "debounce", l.debounce)
	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			wg.Wait()
			l.logger.Info("reconcile: loop stopped")
			return

		case ev := <-l.events:
			l.mu.Lock()
			l.machine.Apply(ev)
			l.mu.Unlock()
			l.logger.Debug("reconcile: event applied", "signal", ev.Signal, "on", ev.On)

			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(l.debounce)

		case <-timer.C:
			l.mu.Lock()
			target, emit := l.machine.Settle()
			snap := l.machine.Snapshot()
			l.mu.Unlock()

			if !emit {
				l.logger.Debug("reconcile: settled without transition", "active", snap.Active)
				continue
			}

			l.logger.Info("reconcile: transport state changed",
				"active", target, "play", snap.PlayActive, "record", snap.RecordActive)
			if l.bus != nil {
				l.bus.Publish(events.NewEvent(events.TransportStateChanged, snap))
			}
			l.push(target)
		}
	}
}

// push queues a target for the dispatch stage, replacing any target still
// waiting: if transitions settle faster than batches complete, only the
// most recent target is actuated once the stage catches up.
func (l *Loop) push(target bool) {
	for {
		select {
		case l.targets <- target:
			return
		default:
			select {
			case stale := <-l.targets:
				l.logger.Debug("reconcile: superseded queued target", "stale", stale, "current", target)
			default:
			}
		}
	}
}

// dispatch actuates queued targets strictly one at a time. Each batch runs
// to completion (bounded by the per-device timeout) before the next target
// is taken.
func (l *Loop) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case target := <-l.targets:
			batch := l.dispatcher.SetAll(ctx, target)
			l.mu.Lock()
			l.lastBatch = &batch
			l.mu.Unlock()
		}
	}
}
