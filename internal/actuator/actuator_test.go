package actuator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/tallyd/internal/config"
	"github.com/jmylchreest/tallyd/internal/errors"
	"github.com/jmylchreest/tallyd/internal/events"
	"github.com/jmylchreest/tallyd/internal/registry"
	"github.com/jmylchreest/tallyd/pkg/kasa"
)

// fakeResolver serves handles from a map; devices without a handle fail
// resolution as unavailable.
type fakeResolver struct {
	mu          sync.Mutex
	devices     []config.Device
	handles     map[string]registry.Handle
	invalidated []string
}

func (f *fakeResolver) All() []config.Device { return f.devices }

func (f *fakeResolver) Find(deviceID string) (config.Device, bool) {
	for _, d := range f.devices {
		if d.DeviceID == deviceID {
			return d, true
		}
	}
	return config.Device{}, false
}

func (f *fakeResolver) Resolve(ctx context.Context, deviceID string) (registry.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.handles[deviceID]
	if !ok {
		return nil, errors.DeviceUnavailablef("device %s did not answer discovery", deviceID)
	}
	return h, nil
}

func (f *fakeResolver) Invalidate(deviceID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, deviceID)
}

// scriptedHandle runs a function per SetState call.
type scriptedHandle struct {
	fn func(ctx context.Context, on bool) error
}

func (h *scriptedHandle) SetState(ctx context.Context, on bool) error { return h.fn(ctx, on) }
func (h *scriptedHandle) Addr() string                                { return "test:9999" }

func okHandle() registry.Handle {
	return &scriptedHandle{fn: func(ctx context.Context, on bool) error { return nil }}
}

func hangingHandle() registry.Handle {
	return &scriptedHandle{fn: func(ctx context.Context, on bool) error {
		<-ctx.Done()
		return ctx.Err()
	}}
}

func sixDevices() []config.Device {
	names := []string{"Green Room", "Lounge", "Jim's Office", "Vestibule", "Drum Room", "Vocal Booth"}
	devices := make([]config.Device, len(names))
	for i, name := range names {
		devices[i] = config.Device{
			Name:     name,
			Location: name,
			Kind:     config.DeviceKindSocket,
			DeviceID: fmt.Sprintf("PLUG-%d", i+1),
		}
	}
	return devices
}

func TestSetAllCommandsEveryDevice(t *testing.T) {
	devices := sixDevices()
	resolver := &fakeResolver{devices: devices, handles: map[string]registry.Handle{}}

	var mu sync.Mutex
	commanded := map[string]bool{}
	for _, d := range devices {
		id := d.DeviceID
		resolver.handles[id] = &scriptedHandle{fn: func(ctx context.Context, on bool) error {
			mu.Lock()
			commanded[id] = on
			mu.Unlock()
			return nil
		}}
	}

	a := New(slog.Default(), events.NewBus(), resolver, time.Second)
	batch := a.SetAll(context.Background(), true)

	require.Len(t, batch.Results, 6)
	assert.Equal(t, 6, batch.Succeeded())
	assert.Len(t, commanded, 6)
	for id, on := range commanded {
		assert.True(t, on, "device %s should have been commanded on", id)
	}
}

func TestSetAllOneResultPerDeviceRegardlessOfFailures(t *testing.T) {
	devices := sixDevices()
	resolver := &fakeResolver{devices: devices, handles: map[string]registry.Handle{}}
	// Only half the fleet resolves; the rest fail as unreachable.
	for _, d := range devices[:3] {
		resolver.handles[d.DeviceID] = okHandle()
	}

	a := New(slog.Default(), nil, resolver, time.Second)
	batch := a.SetAll(context.Background(), false)

	require.Len(t, batch.Results, 6)
	assert.Equal(t, 3, batch.Succeeded())
	for _, r := range batch.Results[3:] {
		assert.Equal(t, OutcomeUnreachable, r.Outcome)
		assert.NotEmpty(t, r.Error)
	}
}

func TestSetAllHangingDeviceDoesNotBlockOthers(t *testing.T) {
	devices := sixDevices()
	resolver := &fakeResolver{devices: devices, handles: map[string]registry.Handle{}}
	for _, d := range devices {
		resolver.handles[d.DeviceID] = okHandle()
	}
	resolver.handles["PLUG-3"] = hangingHandle()

	a := New(slog.Default(), nil, resolver, 300*time.Millisecond)
	start := time.Now()
	batch := a.SetAll(context.Background(), true)
	elapsed := time.Since(start)

	// Bounded by max(per-device timeout), not the sum.
	assert.Less(t, elapsed, 2*time.Second)

	require.Len(t, batch.Results, 6)
	for _, r := range batch.Results {
		if r.DeviceID == "PLUG-3" {
			assert.Equal(t, OutcomeTimeout, r.Outcome)
		} else {
			assert.Equal(t, OutcomeSuccess, r.Outcome)
		}
	}
}

func TestConnectivityFailuresInvalidateHandles(t *testing.T) {
	devices := sixDevices()[:2]
	resolver := &fakeResolver{devices: devices, handles: map[string]registry.Handle{
		"PLUG-1": hangingHandle(),
		"PLUG-2": okHandle(),
	}}

	a := New(slog.Default(), nil, resolver, 100*time.Millisecond)
	a.SetAll(context.Background(), true)

	resolver.mu.Lock()
	defer resolver.mu.Unlock()
	assert.Equal(t, []string{"PLUG-1"}, resolver.invalidated)
}

func TestProtocolErrorsDoNotInvalidate(t *testing.T) {
	devices := sixDevices()[:1]
	resolver := &fakeResolver{devices: devices, handles: map[string]registry.Handle{
		"PLUG-1": &scriptedHandle{fn: func(ctx context.Context, on bool) error {
			return fmt.Errorf("set_relay_state returned err_code -3: %w", kasa.ErrProtocol)
		}},
	}}

	a := New(slog.Default(), nil, resolver, time.Second)
	batch := a.SetAll(context.Background(), true)

	require.Len(t, batch.Results, 1)
	assert.Equal(t, OutcomeProtocolError, batch.Results[0].Outcome)
	assert.Empty(t, resolver.invalidated, "the device answered; its address is still good")
}

func TestGenerationsIncreaseMonotonically(t *testing.T) {
	resolver := &fakeResolver{devices: sixDevices()[:1], handles: map[string]registry.Handle{
		"PLUG-1": okHandle(),
	}}
	a := New(slog.Default(), nil, resolver, time.Second)

	first := a.SetAll(context.Background(), true)
	second := a.SetAll(context.Background(), false)

	assert.Greater(t, second.Generation, first.Generation)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestSetDevice(t *testing.T) {
	resolver := &fakeResolver{devices: sixDevices()[:2], handles: map[string]registry.Handle{
		"PLUG-1": okHandle(),
	}}
	a := New(slog.Default(), events.NewBus(), resolver, time.Second)

	result, err := a.SetDevice(context.Background(), "PLUG-1", true)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, result.Outcome)

	// Unconfigured IDs are rejected outright.
	_, err = a.SetDevice(context.Background(), "NOPE", true)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	// Configured but unresolved devices yield a classified result, not an error.
	result, err = a.SetDevice(context.Background(), "PLUG-2", true)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnreachable, result.Outcome)
}
