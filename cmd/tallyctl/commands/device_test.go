package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/tallyd/pkg/client"
)

// mockClient implements client.Interface with a small static fleet.
type mockClient struct {
	failSet   bool
	lastSetID string
	lastSetOn bool
	tallyOn   *bool
}

var _ client.Interface = (*mockClient)(nil)

func (m *mockClient) Ping() error { return nil }

func (m *mockClient) Status() (map[string]any, error) {
	return map[string]any{
		"transport": map[string]any{
			"play_active":   true,
			"record_active": true,
			"active":        true,
			"pending":       false,
		},
		"devices": map[string]any{
			"PLUG-1": m.device("PLUG-1"),
			"PLUG-2": m.device("PLUG-2"),
		},
	}, nil
}

func (m *mockClient) device(id string) map[string]any {
	if id == "PLUG-1" {
		return map[string]any{
			"device_id": "PLUG-1", "name": "Green Room", "location": "hallway",
			"kind": "socket", "resolved": true,
		}
	}
	return map[string]any{
		"device_id": "PLUG-2", "name": "Vocal Booth", "location": "booth",
		"kind": "bulb", "resolved": false,
	}
}

func (m *mockClient) GetDevices() (map[string]any, error) {
	return map[string]any{
		"PLUG-1": m.device("PLUG-1"),
		"PLUG-2": m.device("PLUG-2"),
	}, nil
}

func (m *mockClient) GetDevice(id string) (map[string]any, error) {
	if id != "PLUG-1" && id != "PLUG-2" {
		return nil, errors.New("server error: device not found: " + id)
	}
	return m.device(id), nil
}

func (m *mockClient) SetDeviceState(id string, on bool) (map[string]any, error) {
	m.lastSetID = id
	m.lastSetOn = on
	if m.failSet {
		return map[string]any{
			"device_id": id, "outcome": "unreachable", "error": "no route to host",
		}, nil
	}
	return map[string]any{"device_id": id, "outcome": "success", "requested_state": on}, nil
}

func (m *mockClient) SetTally(on bool) (map[string]any, error) {
	m.tallyOn = &on
	results := []any{
		map[string]any{"device_id": "PLUG-1", "name": "Green Room", "requested_state": on, "outcome": "success"},
		map[string]any{"device_id": "PLUG-2", "name": "Vocal Booth", "requested_state": on, "outcome": "success"},
	}
	if m.failSet {
		results[1] = map[string]any{
			"device_id": "PLUG-2", "name": "Vocal Booth", "requested_state": on,
			"outcome": "timeout", "error": "context deadline exceeded",
		}
	}
	return map[string]any{"target": on, "results": results}, nil
}

func (m *mockClient) RefreshDevices() (map[string]any, error) {
	return m.GetDevices()
}

func (m *mockClient) AddAPIKey(name, expiresIn string) (map[string]any, error) {
	return map[string]any{"key": name + "-key", "name": name}, nil
}

func (m *mockClient) ListAPIKeys() ([]map[string]any, error) {
	return []map[string]any{}, nil
}

func (m *mockClient) DeleteAPIKey(key string) error { return nil }

func (m *mockClient) SetAPIKeyDisabledStatus(keyOrName string, disabled bool) (map[string]any, error) {
	return map[string]any{"name": keyOrName, "disabled": disabled}, nil
}

func (m *mockClient) GetLogLevel() (string, error) { return "info", nil }

func (m *mockClient) SetLogLevel(level string) error { return nil }

func testContext(mock client.Interface) context.Context {
	return context.WithValue(context.Background(), ClientContextKey, mock)
}

func TestDeviceListCommand(t *testing.T) {
	mock := &mockClient{}
	ctx := testContext(mock)

	// Table output
	outTable := captureStdout(func() {
		cmd := newDeviceListCommand()
		cmd.SetContext(ctx)
		require.NoError(t, cmd.Execute())
	})
	require.Contains(t, outTable, "PLUG-1")
	require.Contains(t, outTable, "Green Room")
	require.Contains(t, outTable, "Vocal Booth")
	require.Contains(t, outTable, "socket")
	require.Contains(t, outTable, "bulb")

	// Parseable output
	outParseable := captureStdout(func() {
		cmd := newDeviceListCommand()
		cmd.SetContext(ctx)
		cmd.SetArgs([]string{"--parseable"})
		require.NoError(t, cmd.Execute())
	})
	require.Contains(t, outParseable, `id="PLUG-1"`)
	require.Contains(t, outParseable, `name="Green Room"`)
	require.Contains(t, outParseable, `kind="socket"`)
	require.Contains(t, outParseable, "resolved=true")
	require.Contains(t, outParseable, `id="PLUG-2"`)
	require.Contains(t, outParseable, "resolved=false")
}

func TestDeviceGetCommand(t *testing.T) {
	mock := &mockClient{}
	ctx := testContext(mock)

	out := captureStdout(func() {
		cmd := newDeviceGetCommand()
		cmd.SetContext(ctx)
		cmd.SetArgs([]string{"PLUG-1"})
		require.NoError(t, cmd.Execute())
	})
	require.Contains(t, out, "PLUG-1")
	require.Contains(t, out, "Green Room")
	require.Contains(t, out, "hallway")

	outParseable := captureStdout(func() {
		cmd := newDeviceGetCommand()
		cmd.SetContext(ctx)
		cmd.SetArgs([]string{"PLUG-2", "--parseable"})
		require.NoError(t, cmd.Execute())
	})
	require.Contains(t, outParseable, `id="PLUG-2"`)
	require.Contains(t, outParseable, `location="booth"`)
}

func TestDeviceGetCommandUnknown(t *testing.T) {
	mock := &mockClient{}
	cmd := newDeviceGetCommand()
	cmd.SetContext(testContext(mock))
	cmd.SetArgs([]string{"PLUG-99"})
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	require.Error(t, cmd.Execute())
}

func TestDeviceSetCommand(t *testing.T) {
	mock := &mockClient{}
	ctx := testContext(mock)

	out := captureStdout(func() {
		cmd := newDeviceSetCommand()
		cmd.SetContext(ctx)
		cmd.SetArgs([]string{"PLUG-1", "on"})
		require.NoError(t, cmd.Execute())
	})
	require.Contains(t, out, "switched on")
	require.Equal(t, "PLUG-1", mock.lastSetID)
	require.True(t, mock.lastSetOn)

	captureStdout(func() {
		cmd := newDeviceSetCommand()
		cmd.SetContext(ctx)
		cmd.SetArgs([]string{"PLUG-1", "off"})
		require.NoError(t, cmd.Execute())
	})
	require.False(t, mock.lastSetOn)
}

func TestDeviceSetCommandFailure(t *testing.T) {
	mock := &mockClient{failSet: true}
	cmd := newDeviceSetCommand()
	cmd.SetContext(testContext(mock))
	cmd.SetArgs([]string{"PLUG-1", "on"})
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	err := cmd.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "unreachable")
}

func TestDeviceSetCommandInvalidState(t *testing.T) {
	mock := &mockClient{}
	cmd := newDeviceSetCommand()
	cmd.SetContext(testContext(mock))
	cmd.SetArgs([]string{"PLUG-1", "sideways"})
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	require.Error(t, cmd.Execute())
}

func TestDeviceRefreshCommand(t *testing.T) {
	mock := &mockClient{}
	out := captureStdout(func() {
		cmd := newDeviceRefreshCommand()
		cmd.SetContext(testContext(mock))
		require.NoError(t, cmd.Execute())
	})
	require.Contains(t, out, "Discovery sweep complete")
	require.Contains(t, out, "PLUG-1")
}
