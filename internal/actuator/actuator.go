// Package actuator drives the whole device fleet to a target power state.
// Commands fan out concurrently, one goroutine per device, each bounded by
// its own timeout; partial failure never aborts the batch. The actuator's
// job is to get as many lights as possible to the target, not to provide
// all-or-nothing semantics.
package actuator

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jmylchreest/tallyd/internal/config"
	"github.com/jmylchreest/tallyd/internal/errors"
	"github.com/jmylchreest/tallyd/internal/events"
	"github.com/jmylchreest/tallyd/internal/registry"
	"github.com/jmylchreest/tallyd/pkg/kasa"
)

// Outcome classifies one per-device command result.
type Outcome string

const (
	OutcomeSuccess       Outcome = "success"
	OutcomeTimeout       Outcome = "timeout"
	OutcomeUnreachable   Outcome = "unreachable"
	OutcomeProtocolError Outcome = "protocol_error"
)

// Result is the outcome of one device command within a batch.
type Result struct {
	DeviceID       string        `json:"device_id"`
	Name           string        `json:"name"`
	RequestedState bool          `json:"requested_state"`
	Outcome        Outcome       `json:"outcome"`
	Duration       time.Duration `json:"duration"`
	Error          string        `json:"error,omitempty"`
}

// Batch records one fleet-wide actuation. Generation increases monotonically
// so observers can discard results from superseded batches.
type Batch struct {
	ID         uuid.UUID     `json:"id"`
	Generation uint64        `json:"generation"`
	Target     bool          `json:"target"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Results    []Result      `json:"results"`
}

// Succeeded counts results with OutcomeSuccess.
func (b *Batch) Succeeded() int {
	n := 0
	for _, r := range b.Results {
		if r.Outcome == OutcomeSuccess {
			n++
		}
	}
	return n
}

// Resolver is the registry surface the actuator needs.
type Resolver interface {
	All() []config.Device
	Find(deviceID string) (config.Device, bool)
	Resolve(ctx context.Context, deviceID string) (registry.Handle, error)
	Invalidate(deviceID string)
}

// Actuator issues idempotent set-state commands across the fleet.
type Actuator struct {
	logger        *slog.Logger
	bus           *events.Bus
	resolver      Resolver
	deviceTimeout time.Duration
	generation    atomic.Uint64
}

// New creates an actuator over the given resolver.
func New(logger *slog.Logger, bus *events.Bus, resolver Resolver, deviceTimeout time.Duration) *Actuator {
	if deviceTimeout <= 0 {
		deviceTimeout = config.DefaultDeviceTimeout
	}
	return &Actuator{
		logger:        logger,
		bus:           bus,
		resolver:      resolver,
		deviceTimeout: deviceTimeout,
	}
}

// SetAll commands every configured device to the target state concurrently
// and returns once each has succeeded, failed, or timed out. Exactly one
// Result is produced per configured device.
func (a *Actuator) SetAll(ctx context.Context, target bool) Batch {
	devices := a.resolver.All()
	batch := Batch{
		ID:         uuid.New(),
		Generation: a.generation.Add(1),
		Target:     target,
		StartedAt:  time.Now(),
		Results:    make([]Result, len(devices)),
	}

	a.logger.Info("actuation: batch started",
		"batch_id", batch.ID, "generation", batch.Generation, "target", target, "devices", len(devices))
	if a.bus != nil {
		a.bus.Publish(events.NewEvent(events.ActuationStarted, map[string]any{
			"batch_id":   batch.ID,
			"generation": batch.Generation,
			"target":     target,
			"devices":    len(devices),
		}))
	}

	var wg sync.WaitGroup
	for i, device := range devices {
		wg.Add(1)
		go func(i int, device config.Device) {
			defer wg.Done()
			batch.Results[i] = a.setDevice(ctx, device, target)
		}(i, device)
	}
	wg.Wait()

	batch.Duration = time.Since(batch.StartedAt)
	a.logBatch(&batch)
	if a.bus != nil {
		a.bus.Publish(events.NewEvent(events.ActuationCompleted, batch))
	}
	return batch
}

// SetDevice commands a single device; the manual-override surfaces use it.
func (a *Actuator) SetDevice(ctx context.Context, deviceID string, target bool) (Result, error) {
	device, ok := a.resolver.Find(deviceID)
	if !ok {
		return Result{}, errors.NotFoundf("device %s is not configured", deviceID)
	}

	result := a.setDevice(ctx, device, target)
	if a.bus != nil {
		a.bus.Publish(events.NewEvent(events.DeviceStateChanged, result))
	}
	return result, nil
}

// setDevice resolves and commands one device within its own timeout,
// classifying any failure instead of raising it.
func (a *Actuator) setDevice(ctx context.Context, device config.Device, target bool) Result {
	start := time.Now()
	result := Result{
		DeviceID:       device.DeviceID,
		Name:           device.Name,
		RequestedState: target,
	}

	ctx, cancel := context.WithTimeout(ctx, a.deviceTimeout)
	defer cancel()

	handle, err := a.resolver.Resolve(ctx, device.DeviceID)
	if err == nil {
		err = handle.SetState(ctx, target)
	}

	result.Duration = time.Since(start)
	if err == nil {
		result.Outcome = OutcomeSuccess
		a.logger.Debug("actuation: device ok",
			"device_id", device.DeviceID, "name", device.Name, "target", target, "duration", result.Duration)
		return result
	}

	result.Outcome = classify(err)
	result.Error = err.Error()
	a.logger.Warn("actuation: device failed",
		"device_id", device.DeviceID, "name", device.Name, "target", target,
		"outcome", result.Outcome, "duration", result.Duration, "error", err)

	// Connectivity-class failures drop the cached handle so the next batch
	// re-discovers the device at whatever address it moved to.
	if result.Outcome == OutcomeTimeout || result.Outcome == OutcomeUnreachable {
		a.resolver.Invalidate(device.DeviceID)
	}
	return result
}

func (a *Actuator) logBatch(b *Batch) {
	failed := len(b.Results) - b.Succeeded()
	if failed == 0 {
		a.logger.Info("actuation: batch completed",
			"batch_id", b.ID, "generation", b.Generation, "target", b.Target,
			"devices", len(b.Results), "duration", b.Duration)
		return
	}
	a.logger.Warn("actuation: batch completed with failures",
		"batch_id", b.ID, "generation", b.Generation, "target", b.Target,
		"devices", len(b.Results), "failed", failed, "duration", b.Duration)
}

// classify maps an error to a Result outcome. Deadline and timeout errors
// rank above unreachability so a slow device is reported as slow, not gone.
func classify(err error) Outcome {
	var nerr net.Error
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	case stderrors.As(err, &nerr) && nerr.Timeout():
		return OutcomeTimeout
	case stderrors.Is(err, kasa.ErrProtocol):
		return OutcomeProtocolError
	default:
		return OutcomeUnreachable
	}
}
