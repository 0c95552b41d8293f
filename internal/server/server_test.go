package server

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/tallyd/internal/actuator"
	"github.com/jmylchreest/tallyd/internal/config"
	"github.com/jmylchreest/tallyd/internal/events"
	"github.com/jmylchreest/tallyd/internal/reconcile"
	"github.com/jmylchreest/tallyd/internal/registry"
	"github.com/jmylchreest/tallyd/pkg/kasa"
)

// fakeHandle records SetState calls for assertions.
type fakeHandle struct {
	addr string

	mu    sync.Mutex
	calls []bool
	err   error
}

func (h *fakeHandle) Addr() string { return h.addr }

func (h *fakeHandle) SetState(_ context.Context, on bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, on)
	return h.err
}

func (h *fakeHandle) lastCall() (bool, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.calls) == 0 {
		return false, false
	}
	return h.calls[len(h.calls)-1], true
}

// testEnv is the fully wired daemon core over fake devices.
type testEnv struct {
	server  *Server
	cfg     *config.Config
	handles map[string]*fakeHandle
}

// setupTestServer wires a server over two fake devices and a fake discovery
// sweep, without any network or hardware.
func setupTestServer(t *testing.T) (*testEnv, string) {
	t.Helper()

	tempDir := t.TempDir()
	socketPath := filepath.Join(tempDir, "tallyd.sock")
	cfgPath := filepath.Join(tempDir, "config.yaml")

	cfg, err := config.Load("config", cfgPath)
	require.NoError(t, err)

	cfg.Server.UnixSocket = socketPath
	cfg.API.ListenAddress = "" // No HTTP for these tests
	cfg.Devices = []config.Device{
		{Name: "Green Room", Location: "hallway", Kind: config.DeviceKindSocket, DeviceID: "PLUG-1"},
		{Name: "Vocal Booth", Location: "booth", Kind: config.DeviceKindBulb, DeviceID: "PLUG-2"},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
	bus := events.NewBus()

	handles := map[string]*fakeHandle{
		"PLUG-1": {addr: "192.0.2.10:9999"},
		"PLUG-2": {addr: "192.0.2.11:9999"},
	}

	reg := registry.New(logger, bus, cfg.Devices, registry.Options{
		DiscoveryTimeout: 100 * time.Millisecond,
		DeviceTimeout:    time.Second,
	})
	reg.SetDiscoverFunc(func(_ context.Context) ([]kasa.DiscoveredDevice, error) {
		return []kasa.DiscoveredDevice{
			{Addr: "192.0.2.10:9999", Info: kasa.SysInfo{DeviceID: "PLUG-1", Alias: "green room plug"}},
			{Addr: "192.0.2.11:9999", Info: kasa.SysInfo{DeviceID: "PLUG-2", Alias: "booth bulb"}},
		}, nil
	})
	reg.SetHandleFactory(func(addr string, device config.Device) registry.Handle {
		return handles[device.DeviceID]
	})

	act := actuator.New(logger, bus, reg, time.Second)
	loop := reconcile.New(logger, bus, act, 30*time.Millisecond)
	levelVar := new(slog.LevelVar)

	srv := New(logger, cfg, reg, act, loop, bus, levelVar, BuildInfo{Version: "test"})

	return &testEnv{server: srv, cfg: cfg, handles: handles}, socketPath
}

func TestNewServer(t *testing.T) {
	env, _ := setupTestServer(t)
	assert.NotNil(t, env.server)
	assert.Equal(t, env.cfg, env.server.cfg)
	assert.NotNil(t, env.server.apikeyManager)
}

func TestServerStartStop(t *testing.T) {
	env, socketPath := setupTestServer(t)

	err := env.server.Start()
	require.NoError(t, err)

	// Test connection
	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	conn.Close()

	env.server.Stop()

	// Verify socket is removed
	_, err = os.Stat(socketPath)
	assert.True(t, os.IsNotExist(err))
}

func TestServerReadiness(t *testing.T) {
	env, _ := setupTestServer(t)

	assert.False(t, env.server.ready.Load())
	env.server.SetReady(true)
	assert.True(t, env.server.ready.Load())
	env.server.SetReady(false)
	assert.False(t, env.server.ready.Load())
}
