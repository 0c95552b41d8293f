// Package handlers provides typed Huma request/response structs and handler
// implementations for the tallyd HTTP API.
package handlers

import (
	"time"

	"github.com/jmylchreest/tallyd/internal/actuator"
	"github.com/jmylchreest/tallyd/internal/config"
	"github.com/jmylchreest/tallyd/internal/transport"
)

// --- Device types ---

// DeviceResponse is the API representation of a configured tally device.
type DeviceResponse struct {
	DeviceID string `json:"device_id" doc:"Stable hardware identifier"`
	Name     string `json:"name" doc:"Display name of the device"`
	Location string `json:"location" doc:"Where the device is installed"`
	Kind     string `json:"kind" doc:"Device class: socket or bulb"`
	Resolved bool   `json:"resolved" doc:"Whether a live network handle is currently cached"`
}

// DeviceFromConfig converts a configured entry plus its resolution state.
func DeviceFromConfig(d config.Device, resolved bool) DeviceResponse {
	return DeviceResponse{
		DeviceID: d.DeviceID,
		Name:     d.Name,
		Location: d.Location,
		Kind:     string(d.Kind),
		Resolved: resolved,
	}
}

// --- Actuation types ---

// ResultResponse is the API representation of one per-device outcome.
type ResultResponse struct {
	DeviceID       string `json:"device_id" doc:"Stable hardware identifier"`
	Name           string `json:"name" doc:"Display name of the device"`
	RequestedState bool   `json:"requested_state" doc:"Target power state"`
	Outcome        string `json:"outcome" doc:"success, timeout, unreachable, or protocol_error"`
	DurationMS     int64  `json:"duration_ms" doc:"Command duration in milliseconds"`
	Error          string `json:"error,omitempty" doc:"Failure detail, if any"`
}

// BatchResponse is the API representation of one fleet-wide actuation.
type BatchResponse struct {
	ID         string           `json:"id" doc:"Batch identifier"`
	Generation uint64           `json:"generation" doc:"Monotonic batch generation"`
	Target     bool             `json:"target" doc:"Target power state"`
	StartedAt  time.Time        `json:"started_at" doc:"When the batch was dispatched"`
	DurationMS int64            `json:"duration_ms" doc:"Total batch duration in milliseconds"`
	Results    []ResultResponse `json:"results" doc:"One result per configured device"`
}

// BatchFromActuator converts an actuator batch.
func BatchFromActuator(b actuator.Batch) BatchResponse {
	results := make([]ResultResponse, len(b.Results))
	for i, r := range b.Results {
		results[i] = resultResponse(r)
	}
	return BatchResponse{
		ID:         b.ID.String(),
		Generation: b.Generation,
		Target:     b.Target,
		StartedAt:  b.StartedAt,
		DurationMS: b.Duration.Milliseconds(),
		Results:    results,
	}
}

// --- Transport types ---

// TransportResponse is the API representation of the debounced transport state.
type TransportResponse struct {
	PlayActive   bool      `json:"play_active" doc:"Latest play signal value"`
	RecordActive bool      `json:"record_active" doc:"Latest record-enable signal value"`
	Active       bool      `json:"active" doc:"Debounced combined state driving the lights"`
	Pending      bool      `json:"pending" doc:"Whether a change is waiting out the debounce window"`
	LastChangeAt time.Time `json:"last_change_at" doc:"When the last control event arrived"`
}

// TransportFromState converts a transport snapshot.
func TransportFromState(s transport.State) TransportResponse {
	return TransportResponse{
		PlayActive:   s.PlayActive,
		RecordActive: s.RecordActive,
		Active:       s.Active,
		Pending:      s.Pending,
		LastChangeAt: s.LastChangeAt,
	}
}

// --- API Key types ---

// APIKeyResponse is the API representation of an API key.
type APIKeyResponse struct {
	ID        string    `json:"id" doc:"Key identifier"`
	Name      string    `json:"name" doc:"Display name of the key"`
	Key       string    `json:"key,omitempty" doc:"Full key string (only present on creation)"`
	CreatedAt time.Time `json:"created_at" doc:"When the key was created"`
	ExpiresAt time.Time `json:"expires_at" doc:"When the key expires"`
}

// --- Common response types ---

// StatusResponse is a simple status response.
type StatusResponse struct {
	Status string `json:"status" doc:"Operation status"`
}
