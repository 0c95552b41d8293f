package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

// --- Health Check ---

// HealthInput is the input for health check endpoints.
type HealthInput struct{}

// HealthOutput is the output for health check endpoints.
type HealthOutput struct {
	Body struct {
		Status string `json:"status" doc:"Service health status"`
	}
}

// HealthCheck returns the service health status.
// This is a public endpoint (no auth required).
func HealthCheck(_ context.Context, _ *HealthInput) (*HealthOutput, error) {
	out := &HealthOutput{}
	out.Body.Status = "ok"
	return out, nil
}

// --- Readiness Check ---

// ReadyHandler reports whether the daemon is ready to serve: config loaded
// and the control listener attached. Public endpoint (no auth required).
type ReadyHandler struct {
	Ready func() bool
}

// ReadyCheck returns 200 once the daemon is ready, 503 before that.
func (h *ReadyHandler) ReadyCheck(_ context.Context, _ *HealthInput) (*HealthOutput, error) {
	if h.Ready != nil && !h.Ready() {
		return nil, huma.Error503ServiceUnavailable("not ready")
	}
	out := &HealthOutput{}
	out.Body.Status = "ready"
	return out, nil
}
