package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/tallyd/internal/config"
	"github.com/jmylchreest/tallyd/internal/errors"
	"github.com/jmylchreest/tallyd/internal/events"
	"github.com/jmylchreest/tallyd/pkg/kasa"
)

var testDevices = []config.Device{
	{Name: "Green Room", Location: "Green Room", Kind: config.DeviceKindSocket, DeviceID: "PLUG-1"},
	{Name: "Vocal Booth", Location: "Vocal Booth", Kind: config.DeviceKindBulb, DeviceID: "BULB-1"},
}

type fakeHandle struct {
	addr string
}

func (h *fakeHandle) SetState(ctx context.Context, on bool) error { return nil }
func (h *fakeHandle) Addr() string                                { return h.addr }

func newTestRegistry(t *testing.T, devices []config.Device) (*Registry, *atomic.Int64) {
	t.Helper()
	r := New(slog.Default(), events.NewBus(), devices, Options{
		DiscoveryTimeout: 100 * time.Millisecond,
	})

	var sweeps atomic.Int64
	r.SetDiscoverFunc(func(ctx context.Context) ([]kasa.DiscoveredDevice, error) {
		sweeps.Add(1)
		return []kasa.DiscoveredDevice{
			{Addr: "10.0.0.10:9999", Info: kasa.SysInfo{DeviceID: "PLUG-1", Alias: "Green Room"}},
			{Addr: "10.0.0.11:9999", Info: kasa.SysInfo{DeviceID: "BULB-1", Alias: "Vocal Booth", MicType: "IOT.SMARTBULB"}},
			{Addr: "10.0.0.99:9999", Info: kasa.SysInfo{DeviceID: "STRANGER", Alias: "Neighbor"}},
		}, nil
	})
	r.SetHandleFactory(func(addr string, device config.Device) Handle {
		return &fakeHandle{addr: addr}
	})
	return r, &sweeps
}

func TestResolveLazilySweepsAndCaches(t *testing.T) {
	r, sweeps := newTestRegistry(t, testDevices)
	ctx := context.Background()

	h, err := r.Resolve(ctx, "PLUG-1")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.10:9999", h.Addr())
	assert.Equal(t, int64(1), sweeps.Load())

	// One sweep resolves the whole fleet: the second device is a cache hit.
	h2, err := r.Resolve(ctx, "BULB-1")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.11:9999", h2.Addr())
	assert.Equal(t, int64(1), sweeps.Load())
}

func TestResolveUnknownDeviceIsNotFound(t *testing.T) {
	r, sweeps := newTestRegistry(t, testDevices)

	_, err := r.Resolve(context.Background(), "NOPE")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, int64(0), sweeps.Load(), "unconfigured IDs must not trigger a sweep")
}

func TestResolveUnansweredDeviceIsUnavailable(t *testing.T) {
	r, _ := newTestRegistry(t, append(testDevices, config.Device{
		Name: "Drum Room", Kind: config.DeviceKindSocket, DeviceID: "PLUG-SILENT",
	}))

	_, err := r.Resolve(context.Background(), "PLUG-SILENT")
	require.Error(t, err)
	assert.True(t, errors.IsDeviceUnavailable(err))
}

func TestResolveSweepFailureIsUnavailable(t *testing.T) {
	r, _ := newTestRegistry(t, testDevices)
	r.SetDiscoverFunc(func(ctx context.Context) ([]kasa.DiscoveredDevice, error) {
		return nil, fmt.Errorf("network down")
	})

	_, err := r.Resolve(context.Background(), "PLUG-1")
	require.Error(t, err)
	assert.True(t, errors.IsDeviceUnavailable(err))
}

func TestInvalidateForcesReResolve(t *testing.T) {
	r, sweeps := newTestRegistry(t, testDevices)
	ctx := context.Background()

	_, err := r.Resolve(ctx, "PLUG-1")
	require.NoError(t, err)

	r.Invalidate("PLUG-1")
	assert.False(t, r.Resolved("PLUG-1"))

	_, err = r.Resolve(ctx, "PLUG-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), sweeps.Load())
}

func TestInvalidateUnresolvedIsHarmless(t *testing.T) {
	r, _ := newTestRegistry(t, testDevices)
	r.Invalidate("PLUG-1")
	r.Invalidate("never-configured")
}

func TestRefreshPicksUpChangedAddress(t *testing.T) {
	r, _ := newTestRegistry(t, testDevices[:1])
	ctx := context.Background()

	h, err := r.Resolve(ctx, "PLUG-1")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.10:9999", h.Addr())

	r.SetDiscoverFunc(func(ctx context.Context) ([]kasa.DiscoveredDevice, error) {
		return []kasa.DiscoveredDevice{
			{Addr: "10.0.0.50:9999", Info: kasa.SysInfo{DeviceID: "PLUG-1"}},
		}, nil
	})
	require.NoError(t, r.Refresh(ctx))

	h, err = r.Resolve(ctx, "PLUG-1")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.50:9999", h.Addr())
}

func TestResolvedEventsPublished(t *testing.T) {
	bus := events.NewBus()
	var resolved, invalidated atomic.Int64
	bus.Subscribe(func(e events.Event) {
		switch e.Type {
		case events.DeviceResolved:
			resolved.Add(1)
		case events.DeviceInvalidated:
			invalidated.Add(1)
		}
	})

	r := New(slog.Default(), bus, testDevices, Options{})
	r.SetDiscoverFunc(func(ctx context.Context) ([]kasa.DiscoveredDevice, error) {
		return []kasa.DiscoveredDevice{
			{Addr: "10.0.0.10:9999", Info: kasa.SysInfo{DeviceID: "PLUG-1"}},
		}, nil
	})
	r.SetHandleFactory(func(addr string, device config.Device) Handle {
		return &fakeHandle{addr: addr}
	})

	_, err := r.Resolve(context.Background(), "PLUG-1")
	require.NoError(t, err)
	r.Invalidate("PLUG-1")

	assert.Equal(t, int64(1), resolved.Load())
	assert.Equal(t, int64(1), invalidated.Load())
}

func TestAllReturnsCopy(t *testing.T) {
	r, _ := newTestRegistry(t, testDevices)

	all := r.All()
	require.Len(t, all, 2)
	all[0].DeviceID = "mutated"

	again := r.All()
	assert.Equal(t, "PLUG-1", again[0].DeviceID)
}
