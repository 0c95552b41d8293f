package handlers

import (
	"context"

	"github.com/jmylchreest/tallyd/internal/actuator"
)

// FleetController actuates the whole fleet at once. Satisfied by
// *actuator.Actuator.
type FleetController interface {
	SetAll(ctx context.Context, target bool) actuator.Batch
}

// SetTallyInput is the input for the manual fleet override.
type SetTallyInput struct {
	Body struct {
		On bool `json:"on" doc:"Target power state for every configured device"`
	}
}

// SetTallyOutput is the output for the manual fleet override. The batch is
// returned whole: callers see every per-device outcome, successes and
// failures alike.
type SetTallyOutput struct {
	Body BatchResponse
}

// TallyHandler implements the manual fleet override endpoint.
type TallyHandler struct {
	Actuator FleetController
}

// SetTally drives every configured device to the requested state. A manual
// override does not touch the transport machine; the next settled MIDI
// transition supersedes it.
func (h *TallyHandler) SetTally(ctx context.Context, input *SetTallyInput) (*SetTallyOutput, error) {
	batch := h.Actuator.SetAll(ctx, input.Body.On)
	return &SetTallyOutput{Body: BatchFromActuator(batch)}, nil
}

// Ensure TallyHandler implements the interface at compile time.
var _ TallyHandlers = (*TallyHandler)(nil)

// TallyHandlers defines the interface for tally operations.
type TallyHandlers interface {
	SetTally(ctx context.Context, input *SetTallyInput) (*SetTallyOutput, error)
}
