package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests exercise the full daemon wiring end to end over the control
// socket, with the device fleet faked out at the registry handle layer.

func TestIntegrationStartStop(t *testing.T) {
	env, socketPath := setupTestServer(t)

	require.NoError(t, env.server.Start())

	// Socket must exist and accept connections
	info, err := os.Stat(socketPath)
	require.NoError(t, err)
	assert.Equal(t, os.ModeSocket, info.Mode()&os.ModeSocket)

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	conn.Close()

	env.server.Stop()

	_, err = os.Stat(socketPath)
	assert.True(t, os.IsNotExist(err), "socket file should be removed on stop")
}

func TestIntegrationTallyRoundTrip(t *testing.T) {
	env, socketPath := setupSocketTest(t)

	// Engage then release the tally, asserting the fleet followed
	resp := socketRequest(t, socketPath, map[string]any{
		"action": "set_tally",
		"data":   map[string]any{"on": true},
	})
	require.Equal(t, "ok", resp["status"])
	for id, h := range env.handles {
		on, called := h.lastCall()
		require.True(t, called, "device %s not commanded", id)
		assert.True(t, on, "device %s should be on", id)
	}

	resp = socketRequest(t, socketPath, map[string]any{
		"action": "set_tally",
		"data":   map[string]any{"on": false},
	})
	require.Equal(t, "ok", resp["status"])
	for id, h := range env.handles {
		on, _ := h.lastCall()
		assert.False(t, on, "device %s should be off", id)
	}

	// The fleet should now report as resolved
	resp = socketRequest(t, socketPath, map[string]any{"action": "list_devices"})
	devices := resp["devices"].(map[string]any)
	for id, v := range devices {
		d := v.(map[string]any)
		assert.Equal(t, true, d["resolved"], "device %s should be resolved", id)
	}
}

func TestIntegrationConcurrentConnections(t *testing.T) {
	_, socketPath := setupSocketTest(t)

	const clients = 10
	errCh := make(chan error, clients)
	var wg sync.WaitGroup

	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			conn, err := net.Dial("unix", socketPath)
			if err != nil {
				errCh <- fmt.Errorf("client %d dial: %w", i, err)
				return
			}
			defer conn.Close()

			reqID := fmt.Sprintf("client-%d", i)
			if err := json.NewEncoder(conn).Encode(map[string]any{"action": "ping", "id": reqID}); err != nil {
				errCh <- fmt.Errorf("client %d write: %w", i, err)
				return
			}

			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			line, err := bufio.NewReader(conn).ReadBytes('\n')
			if err != nil {
				errCh <- fmt.Errorf("client %d read: %w", i, err)
				return
			}

			var resp map[string]any
			if err := json.Unmarshal(line, &resp); err != nil {
				errCh <- fmt.Errorf("client %d decode: %w", i, err)
				return
			}
			if resp["message"] != "pong" || resp["id"] != reqID {
				errCh <- fmt.Errorf("client %d unexpected response: %v", i, resp)
			}
		}(i)
	}

	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Error(err)
	}
}

func TestIntegrationGracefulShutdown(t *testing.T) {
	env, socketPath := setupTestServer(t)
	require.NoError(t, env.server.Start())

	// Hold an idle connection open across shutdown
	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		env.server.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down within 5s with an open connection")
	}

	// New connections must be refused after shutdown
	_, err = net.Dial("unix", socketPath)
	assert.Error(t, err)
}
