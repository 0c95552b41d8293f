package handlers

import (
	"context"
	"fmt"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/tallyd/internal/actuator"
	"github.com/jmylchreest/tallyd/internal/config"
)

// DeviceLister exposes the configured fleet and its resolution state.
// Satisfied by *registry.Registry.
type DeviceLister interface {
	All() []config.Device
	Find(deviceID string) (config.Device, bool)
	Resolved(deviceID string) bool
	Refresh(ctx context.Context) error
}

// DeviceController actuates individual devices. Satisfied by *actuator.Actuator.
type DeviceController interface {
	SetDevice(ctx context.Context, deviceID string, target bool) (actuator.Result, error)
}

// --- List Devices ---

// ListDevicesInput is the input for listing all configured devices.
type ListDevicesInput struct{}

// ListDevicesOutput is the output for listing all configured devices.
// Returns devices as a map keyed by device ID.
type ListDevicesOutput struct {
	Body map[string]DeviceResponse
}

// --- Get Device ---

// GetDeviceInput is the input for getting a single device.
type GetDeviceInput struct {
	ID string `path:"id" doc:"Stable device identifier"`
}

// GetDeviceOutput is the output for getting a single device.
type GetDeviceOutput struct {
	Body DeviceResponse
}

// --- Set Device State ---

// SetDeviceStateInput is the input for setting a single device's power state.
type SetDeviceStateInput struct {
	ID   string `path:"id" doc:"Stable device identifier"`
	Body struct {
		On bool `json:"on" doc:"Target power state"`
	}
}

// SetDeviceStateOutput is the output for setting a single device's power state.
type SetDeviceStateOutput struct {
	Body ResultResponse
}

// --- Refresh Devices ---

// RefreshDevicesInput is the input for forcing a discovery sweep.
type RefreshDevicesInput struct{}

// RefreshDevicesOutput is the output for forcing a discovery sweep.
type RefreshDevicesOutput struct {
	Body map[string]DeviceResponse
}

// DeviceHandler implements device-related HTTP handlers.
type DeviceHandler struct {
	Devices  DeviceLister
	Actuator DeviceController
}

// ListDevices returns all configured devices as a map keyed by device ID.
func (h *DeviceHandler) ListDevices(_ context.Context, _ *ListDevicesInput) (*ListDevicesOutput, error) {
	return &ListDevicesOutput{Body: h.deviceMap()}, nil
}

// GetDevice returns a single configured device by ID.
func (h *DeviceHandler) GetDevice(_ context.Context, input *GetDeviceInput) (*GetDeviceOutput, error) {
	device, ok := h.Devices.Find(input.ID)
	if !ok {
		return nil, huma.Error404NotFound(fmt.Sprintf("Device not found: %s", input.ID))
	}
	return &GetDeviceOutput{Body: DeviceFromConfig(device, h.Devices.Resolved(device.DeviceID))}, nil
}

// SetDeviceState drives one device to the requested power state. Unlike the
// fleet-wide tally path this reports the per-device outcome directly; a
// command failure is a 502 so callers can tell daemon errors from device
// errors.
func (h *DeviceHandler) SetDeviceState(ctx context.Context, input *SetDeviceStateInput) (*SetDeviceStateOutput, error) {
	result, err := h.Actuator.SetDevice(ctx, input.ID, input.Body.On)
	if err != nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("Device not found: %s", err))
	}
	if result.Outcome != actuator.OutcomeSuccess {
		return nil, huma.Error502BadGateway(
			fmt.Sprintf("Device command failed (%s): %s", result.Outcome, result.Error),
		)
	}
	return &SetDeviceStateOutput{Body: resultResponse(result)}, nil
}

// RefreshDevices forces a discovery sweep and returns the refreshed fleet.
func (h *DeviceHandler) RefreshDevices(ctx context.Context, _ *RefreshDevicesInput) (*RefreshDevicesOutput, error) {
	if err := h.Devices.Refresh(ctx); err != nil {
		return nil, huma.Error502BadGateway(fmt.Sprintf("Discovery sweep failed: %s", err))
	}
	return &RefreshDevicesOutput{Body: h.deviceMap()}, nil
}

func (h *DeviceHandler) deviceMap() map[string]DeviceResponse {
	devices := h.Devices.All()
	out := make(map[string]DeviceResponse, len(devices))
	for _, d := range devices {
		out[d.DeviceID] = DeviceFromConfig(d, h.Devices.Resolved(d.DeviceID))
	}
	return out
}

func resultResponse(r actuator.Result) ResultResponse {
	return ResultResponse{
		DeviceID:       r.DeviceID,
		Name:           r.Name,
		RequestedState: r.RequestedState,
		Outcome:        string(r.Outcome),
		DurationMS:     r.Duration.Milliseconds(),
		Error:          r.Error,
	}
}

// Ensure DeviceHandler implements the interface at compile time.
var _ DeviceHandlers = (*DeviceHandler)(nil)

// DeviceHandlers defines the interface for device operations.
type DeviceHandlers interface {
	ListDevices(ctx context.Context, input *ListDevicesInput) (*ListDevicesOutput, error)
	GetDevice(ctx context.Context, input *GetDeviceInput) (*GetDeviceOutput, error)
	SetDeviceState(ctx context.Context, input *SetDeviceStateInput) (*SetDeviceStateOutput, error)
	RefreshDevices(ctx context.Context, input *RefreshDevicesInput) (*RefreshDevicesOutput, error)
}
