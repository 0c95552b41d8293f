// Package registry resolves configured tally devices to live network
// handles. The configured device list is fixed for the process lifetime;
// handles are created lazily from discovery sweeps, cached per device ID,
// and invalidated after connectivity failures so the next actuation
// re-resolves them.
package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/tallyd/internal/config"
	"github.com/jmylchreest/tallyd/internal/errors"
	"github.com/jmylchreest/tallyd/internal/events"
	"github.com/jmylchreest/tallyd/pkg/kasa"
)

// Handle is a live connection to one physical device, bound to the address
// it was last discovered at.
type Handle interface {
	// SetState drives the device to the target power state.
	SetState(ctx context.Context, on bool) error

	// Addr returns the network address the handle commands.
	Addr() string
}

// DiscoverFunc runs one discovery sweep. Injectable so tests can resolve
// devices without a network.
type DiscoverFunc func(ctx context.Context) ([]kasa.DiscoveredDevice, error)

// Options tune resolution behavior.
type Options struct {
	// DiscoveryTimeout bounds a single sweep.
	DiscoveryTimeout time.Duration

	// RefreshInterval is the background re-sweep cadence for Run.
	RefreshInterval time.Duration

	// DeviceTimeout bounds each command issued through a handle's client.
	DeviceTimeout time.Duration

	// BulbBrightness is applied when turning a bulb on.
	BulbBrightness int

	// BroadcastAddr overrides the discovery probe destination.
	BroadcastAddr string
}

// Registry holds the static device list and the handle cache.
type Registry struct {
	logger  *slog.Logger
	bus     *events.Bus
	devices []config.Device
	opts    Options

	mu      sync.RWMutex
	handles map[string]Handle

	// sweepMu serializes discovery sweeps so concurrent cache misses share
	// one probe instead of flooding the network.
	sweepMu sync.Mutex

	discover  DiscoverFunc
	newHandle func(addr string, device config.Device) Handle
}

// New creates a registry over the configured device list.
func New(logger *slog.Logger, bus *events.Bus, devices []config.Device, opts Options) *Registry {
	if opts.DiscoveryTimeout <= 0 {
		opts.DiscoveryTimeout = config.DefaultDiscoveryTimeout
	}
	if opts.DeviceTimeout <= 0 {
		opts.DeviceTimeout = config.DefaultDeviceTimeout
	}
	if opts.BulbBrightness <= 0 {
		opts.BulbBrightness = config.DefaultBulbBrightness
	}

	r := &Registry{
		logger:  logger,
		bus:     bus,
		devices: devices,
		opts:    opts,
		handles: make(map[string]Handle),
	}
	r.discover = func(ctx context.Context) ([]kasa.DiscoveredDevice, error) {
		return kasa.Discover(ctx, kasa.DiscoverOptions{
			Timeout:       r.opts.DiscoveryTimeout,
			BroadcastAddr: r.opts.BroadcastAddr,
			Logger:        logger,
		})
	}
	r.newHandle = func(addr string, device config.Device) Handle {
		return &kasaHandle{
			client:     kasa.NewClient(addr, r.opts.DeviceTimeout, logger),
			kind:       device.Kind,
			brightness: r.opts.BulbBrightness,
		}
	}
	return r
}

// SetDiscoverFunc replaces the discovery sweep implementation. Test hook.
func (r *Registry) SetDiscoverFunc(fn DiscoverFunc) { r.discover = fn }

// SetHandleFactory replaces handle construction. Test hook.
func (r *Registry) SetHandleFactory(fn func(addr string, device config.Device) Handle) {
	r.newHandle = fn
}

// All returns the configured device entries.
func (r *Registry) All() []config.Device {
	out := make([]config.Device, len(r.devices))
	copy(out, r.devices)
	return out
}

// Find returns the configured entry for a device ID.
func (r *Registry) Find(deviceID string) (config.Device, bool) {
	for _, d := range r.devices {
		if d.DeviceID == deviceID {
			return d, true
		}
	}
	return config.Device{}, false
}

// Resolve returns a live handle for the device, running a discovery sweep
// on a cache miss. Failure to resolve is an outcome the caller records, not
// a fatal condition; the device is retried on the next actuation.
func (r *Registry) Resolve(ctx context.Context, deviceID string) (Handle, error) {
	if _, ok := r.Find(deviceID); !ok {
		return nil, errors.NotFoundf("device %s is not configured", deviceID)
	}

	r.mu.RLock()
	h, ok := r.handles[deviceID]
	r.mu.RUnlock()
	if ok {
		return h, nil
	}

	if err := r.sweep(ctx); err != nil {
		return nil, errors.DeviceUnavailablef("discovery sweep failed: %w", err)
	}

	r.mu.RLock()
	h, ok = r.handles[deviceID]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.DeviceUnavailablef("device %s did not answer discovery", deviceID)
	}
	return h, nil
}

// Invalidate drops the cached handle so the next Resolve re-discovers the
// device. Safe to call for IDs that were never resolved.
func (r *Registry) Invalidate(deviceID string) {
	r.mu.Lock()
	h, ok := r.handles[deviceID]
	if ok {
		delete(r.handles, deviceID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	r.logger.Debug("registry: handle invalidated", "device_id", deviceID, "addr", h.Addr())
	if r.bus != nil {
		r.bus.Publish(events.NewEvent(events.DeviceInvalidated, map[string]string{
			"device_id": deviceID,
		}))
	}
}

// Resolved reports whether a handle is currently cached for the device.
func (r *Registry) Resolved(deviceID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handles[deviceID]
	return ok
}

// Refresh forces a discovery sweep now, ahead of need.
func (r *Registry) Refresh(ctx context.Context) error {
	return r.sweep(ctx)
}

// sweep runs one discovery pass and caches a handle for every reply that
// matches a configured device ID. One sweep typically resolves the whole
// fleet, so concurrent misses wait for the in-flight sweep rather than
// starting their own.
func (r *Registry) sweep(ctx context.Context) error {
	r.sweepMu.Lock()
	defer r.sweepMu.Unlock()

	found, err := r.discover(ctx)
	if err != nil {
		return err
	}

	matched := 0
	for _, d := range found {
		device, ok := r.Find(d.Info.DeviceID)
		if !ok {
			r.logger.Debug("registry: ignoring unconfigured device",
				"device_id", d.Info.DeviceID, "alias", d.Info.Alias)
			continue
		}

		r.mu.Lock()
		prev, had := r.handles[device.DeviceID]
		if had && prev.Addr() == d.Addr {
			r.mu.Unlock()
			matched++
			continue
		}
		r.handles[device.DeviceID] = r.newHandle(d.Addr, device)
		r.mu.Unlock()
		matched++

		r.logger.Info("registry: device resolved",
			"device_id", device.DeviceID, "name", device.Name, "kind", device.Kind, "addr", d.Addr)
		if r.bus != nil {
			r.bus.Publish(events.NewEvent(events.DeviceResolved, map[string]string{
				"device_id": device.DeviceID,
				"name":      device.Name,
				"addr":      d.Addr,
			}))
		}
	}

	if matched < len(r.devices) {
		r.logger.Warn("registry: sweep left devices unresolved",
			"configured", len(r.devices), "matched", matched)
	}
	return nil
}

// Run re-sweeps in the background so changed addresses are picked up ahead
// of need. Blocks until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) {
	interval := config.ValidateDiscoveryInterval(r.opts.RefreshInterval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("registry: background refresh started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("registry: background refresh stopped")
			return
		case <-ticker.C:
			if err := r.sweep(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("registry: background sweep failed", "error", err)
			}
		}
	}
}

// kasaHandle drives one Kasa device, choosing the relay or lighting-service
// command by device kind.
type kasaHandle struct {
	client     *kasa.Client
	kind       config.DeviceKind
	brightness int
}

func (h *kasaHandle) Addr() string { return h.client.Addr() }

func (h *kasaHandle) SetState(ctx context.Context, on bool) error {
	if h.kind == config.DeviceKindBulb {
		return h.client.SetLightState(ctx, on, h.brightness)
	}
	return h.client.SetRelayState(ctx, on)
}
