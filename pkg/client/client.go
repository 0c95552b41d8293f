// Package client provides programmatic access to a running tallyd daemon,
// over its unix control socket or its HTTP API.
package client

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
)

var dial = net.Dial

// Interface defines the surface for interacting with tallyd. The CLI mocks
// this in tests.
type Interface interface {
	Ping() error
	Status() (map[string]any, error)
	GetDevices() (map[string]any, error)
	GetDevice(id string) (map[string]any, error)
	SetDeviceState(id string, on bool) (map[string]any, error)
	SetTally(on bool) (map[string]any, error)
	RefreshDevices() (map[string]any, error)
	AddAPIKey(name, expiresIn string) (map[string]any, error)
	ListAPIKeys() ([]map[string]any, error)
	DeleteAPIKey(key string) error
	SetAPIKeyDisabledStatus(keyOrName string, disabled bool) (map[string]any, error)
	GetLogLevel() (string, error)
	SetLogLevel(level string) error
}

// Client talks to tallyd over the unix control socket.
type Client struct {
	logger *slog.Logger
	socket string
}

// New creates a new client. An empty socket path resolves to the daemon's
// default runtime location.
func New(logger *slog.Logger, socket string) *Client {
	if socket == "" {
		// Use XDG runtime directory
		if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
			socket = filepath.Join(dir, "tallyd.sock")
			logger.Debug("Using XDG runtime directory for socket", "dir", dir, "socket", socket)
		} else {
			uid := os.Getuid()
			socket = filepath.Join("/run/user", fmt.Sprintf("%d", uid), "tallyd.sock")
			logger.Debug("Using /run/user for socket", "uid", uid, "socket", socket)
		}
	} else {
		logger.Debug("Using provided socket path", "socket", socket)
	}

	return &Client{
		logger: logger,
		socket: socket,
	}
}

// request sends one action to tallyd and decodes the single-line JSON reply.
func (c *Client) request(action string, data map[string]any) (map[string]any, error) {
	c.logger.Debug("Connecting to socket", "socket", c.socket)
	conn, err := dial("unix", c.socket)
	if err != nil {
		c.logger.Error("Failed to connect to socket", "error", err, "socket", c.socket)
		return nil, fmt.Errorf("failed to connect to socket: %w", err)
	}
	defer conn.Close()

	req := map[string]any{"action": action}
	if data != nil {
		req["data"] = data
	}

	c.logger.Debug("Encoding request", "action", action, "data", data)
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		c.logger.Error("Failed to encode request", "error", err)
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	var resp map[string]any
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		c.logger.Error("Failed to decode response", "error", err)
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	c.logger.Debug("Received response", "response", resp)

	if errMsg, ok := resp["error"].(string); ok {
		c.logger.Error("Server returned error", "error", errMsg)
		return nil, fmt.Errorf("server error: %s", errMsg)
	}
	return resp, nil
}

// Ping checks that the daemon answers on its socket.
func (c *Client) Ping() error {
	_, err := c.request("ping", nil)
	return err
}

// Status returns the daemon's transport snapshot, last batch, and fleet.
func (c *Client) Status() (map[string]any, error) {
	return c.request("status", nil)
}

// GetDevices returns all configured devices keyed by device ID.
func (c *Client) GetDevices() (map[string]any, error) {
	resp, err := c.request("list_devices", nil)
	if err != nil {
		return nil, err
	}
	devices, _ := resp["devices"].(map[string]any)
	return devices, nil
}

// GetDevice returns one configured device.
func (c *Client) GetDevice(id string) (map[string]any, error) {
	resp, err := c.request("get_device", map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	device, _ := resp["device"].(map[string]any)
	return device, nil
}

// SetDeviceState commands one device to the given power state and returns
// the command result. A failed actuation is returned as a result, not an
// error; callers inspect the outcome field.
func (c *Client) SetDeviceState(id string, on bool) (map[string]any, error) {
	resp, err := c.request("set_device_state", map[string]any{"id": id, "on": on})
	if err != nil {
		return nil, err
	}
	result, _ := resp["result"].(map[string]any)
	return result, nil
}

// SetTally commands the whole fleet to the given state and returns the batch.
func (c *Client) SetTally(on bool) (map[string]any, error) {
	resp, err := c.request("set_tally", map[string]any{"on": on})
	if err != nil {
		return nil, err
	}
	batch, _ := resp["batch"].(map[string]any)
	return batch, nil
}

// RefreshDevices triggers a discovery sweep and returns the refreshed fleet.
func (c *Client) RefreshDevices() (map[string]any, error) {
	resp, err := c.request("refresh_devices", nil)
	if err != nil {
		return nil, err
	}
	devices, _ := resp["devices"].(map[string]any)
	return devices, nil
}

// AddAPIKey creates an API key. expiresIn is a Go duration string ("720h")
// or empty for a key that never expires.
func (c *Client) AddAPIKey(name, expiresIn string) (map[string]any, error) {
	data := map[string]any{"name": name}
	if expiresIn != "" {
		data["expires_in"] = expiresIn
	}
	resp, err := c.request("apikey_add", data)
	if err != nil {
		return nil, err
	}
	key, _ := resp["key"].(map[string]any)
	return key, nil
}

// ListAPIKeys returns all API keys.
func (c *Client) ListAPIKeys() ([]map[string]any, error) {
	resp, err := c.request("apikey_list", nil)
	if err != nil {
		return nil, err
	}
	raw, _ := resp["keys"].([]any)
	keys := make([]map[string]any, 0, len(raw))
	for _, k := range raw {
		if m, ok := k.(map[string]any); ok {
			keys = append(keys, m)
		}
	}
	return keys, nil
}

// DeleteAPIKey deletes an API key by its key string.
func (c *Client) DeleteAPIKey(key string) error {
	_, err := c.request("apikey_delete", map[string]any{"key": key})
	return err
}

// SetAPIKeyDisabledStatus enables or disables an API key by key or name.
func (c *Client) SetAPIKeyDisabledStatus(keyOrName string, disabled bool) (map[string]any, error) {
	resp, err := c.request("apikey_set_disabled_status", map[string]any{
		"key_or_name": keyOrName,
		"disabled":    disabled,
	})
	if err != nil {
		return nil, err
	}
	key, _ := resp["key"].(map[string]any)
	return key, nil
}

// GetLogLevel returns the daemon's current log level.
func (c *Client) GetLogLevel() (string, error) {
	resp, err := c.request("get_level", nil)
	if err != nil {
		return "", err
	}
	level, _ := resp["level"].(string)
	return level, nil
}

// SetLogLevel changes the daemon's log level at runtime.
func (c *Client) SetLogLevel(level string) error {
	_, err := c.request("set_level", map[string]any{"level": level})
	return err
}
