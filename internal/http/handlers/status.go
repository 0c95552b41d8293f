package handlers

import (
	"context"

	"github.com/jmylchreest/tallyd/internal/reconcile"
)

// StatusProvider exposes the reconciliation loop's state. Satisfied by
// *reconcile.Loop.
type StatusProvider interface {
	Snapshot() reconcile.Status
}

// DaemonStatusInput is the input for the daemon status endpoint.
type DaemonStatusInput struct{}

// DaemonStatusOutput is the output for the daemon status endpoint.
type DaemonStatusOutput struct {
	Body DaemonStatus
}

// DaemonStatus is the full daemon state: transport, last actuation, fleet.
type DaemonStatus struct {
	Transport TransportResponse         `json:"transport" doc:"Debounced transport state"`
	LastBatch *BatchResponse            `json:"last_batch,omitempty" doc:"Most recent fleet actuation, if any"`
	Devices   map[string]DeviceResponse `json:"devices" doc:"Configured devices keyed by ID"`
}

// StatusHandler implements the daemon status endpoint.
type StatusHandler struct {
	Status  StatusProvider
	Devices DeviceLister
}

// GetStatus returns the transport state, the last batch, and the fleet.
func (h *StatusHandler) GetStatus(_ context.Context, _ *DaemonStatusInput) (*DaemonStatusOutput, error) {
	snap := h.Status.Snapshot()

	out := DaemonStatus{
		Transport: TransportFromState(snap.Transport),
		Devices:   make(map[string]DeviceResponse),
	}
	if snap.LastBatch != nil {
		b := BatchFromActuator(*snap.LastBatch)
		out.LastBatch = &b
	}
	for _, d := range h.Devices.All() {
		out.Devices[d.DeviceID] = DeviceFromConfig(d, h.Devices.Resolved(d.DeviceID))
	}

	return &DaemonStatusOutput{Body: out}, nil
}

// Ensure StatusHandler implements the interface at compile time.
var _ StatusHandlers = (*StatusHandler)(nil)

// StatusHandlers defines the interface for status operations.
type StatusHandlers interface {
	GetStatus(ctx context.Context, input *DaemonStatusInput) (*DaemonStatusOutput, error)
}
