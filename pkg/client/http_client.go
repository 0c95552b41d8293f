package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// HTTPClient talks to tallyd over its HTTP API.
type HTTPClient struct {
	logger  *slog.Logger
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTP creates a new HTTP client
func NewHTTP(logger *slog.Logger, baseURL string, apiKey string) *HTTPClient {
	// Ensure baseURL doesn't have trailing slash
	baseURL = strings.TrimSuffix(baseURL, "/")

	return &HTTPClient{
		logger:  logger,
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// request performs an HTTP request and decodes the JSON response
func (c *HTTPClient) request(method, path string, body any, resp any) error {
	url := c.baseURL + path
	c.logger.Debug("HTTP request", "method", method, "url", url)

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	httpResp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("HTTP request failed", "error", err)
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		c.logger.Error("HTTP error response", "status", httpResp.StatusCode, "body", string(respBody))
		return fmt.Errorf("HTTP error %d: %s", httpResp.StatusCode, string(respBody))
	}

	if resp != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, resp); err != nil {
			c.logger.Error("Failed to decode response", "error", err, "body", string(respBody))
			return fmt.Errorf("failed to decode response: %w", err)
		}
		c.logger.Debug("Received response", "response", resp)
	}

	return nil
}

// GetVersion returns the running daemon's version information.
func (c *HTTPClient) GetVersion() (map[string]any, error) {
	var resp map[string]any
	if err := c.request("GET", "/api/v1/version", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Status returns the daemon's transport snapshot, last batch, and fleet.
func (c *HTTPClient) Status() (map[string]any, error) {
	var resp map[string]any
	if err := c.request("GET", "/api/v1/status", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetDevices returns all configured devices keyed by device ID.
func (c *HTTPClient) GetDevices() (map[string]any, error) {
	var resp map[string]any
	if err := c.request("GET", "/api/v1/devices", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetDevice returns one configured device.
func (c *HTTPClient) GetDevice(id string) (map[string]any, error) {
	var resp map[string]any
	if err := c.request("GET", "/api/v1/devices/"+id, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// SetDeviceState commands one device to the given power state.
func (c *HTTPClient) SetDeviceState(id string, on bool) (map[string]any, error) {
	body := map[string]any{"on": on}
	var resp map[string]any
	if err := c.request("PUT", "/api/v1/devices/"+id+"/state", body, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// SetTally commands the whole fleet to the given state and returns the batch.
func (c *HTTPClient) SetTally(on bool) (map[string]any, error) {
	body := map[string]any{"on": on}
	var resp map[string]any
	if err := c.request("PUT", "/api/v1/tally", body, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// RefreshDevices triggers a discovery sweep and returns the refreshed fleet.
func (c *HTTPClient) RefreshDevices() (map[string]any, error) {
	var resp map[string]any
	if err := c.request("POST", "/api/v1/devices/refresh", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// AddAPIKey creates an API key. expiresIn is a Go duration string ("720h")
// or empty for a key that never expires.
func (c *HTTPClient) AddAPIKey(name, expiresIn string) (map[string]any, error) {
	body := map[string]any{"name": name}
	if expiresIn != "" {
		body["expires_in"] = expiresIn
	}
	var resp map[string]any
	if err := c.request("POST", "/api/v1/apikeys", body, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ListAPIKeys returns all API keys
func (c *HTTPClient) ListAPIKeys() ([]map[string]any, error) {
	var resp []map[string]any
	if err := c.request("GET", "/api/v1/apikeys", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// DeleteAPIKey deletes an API key
func (c *HTTPClient) DeleteAPIKey(key string) error {
	return c.request("DELETE", "/api/v1/apikeys/"+key, nil, nil)
}

// SetAPIKeyDisabledStatus enables or disables an API key
func (c *HTTPClient) SetAPIKeyDisabledStatus(keyOrName string, disabled bool) (map[string]any, error) {
	body := map[string]any{"disabled": disabled}
	var resp map[string]any
	if err := c.request("PUT", "/api/v1/apikeys/"+keyOrName+"/disabled", body, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetLogLevel returns the daemon's current log level.
func (c *HTTPClient) GetLogLevel() (string, error) {
	var resp map[string]any
	if err := c.request("GET", "/api/v1/logging/level", nil, &resp); err != nil {
		return "", err
	}
	level, _ := resp["level"].(string)
	return level, nil
}

// SetLogLevel changes the daemon's log level at runtime.
func (c *HTTPClient) SetLogLevel(level string) error {
	body := map[string]any{"level": level}
	return c.request("PUT", "/api/v1/logging/level", body, nil)
}
