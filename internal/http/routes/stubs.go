package routes

import (
	"context"

	"github.com/jmylchreest/tallyd/internal/http/handlers"
)

// StubHandlers returns a Handlers instance with stub implementations.
// All handlers return nil responses — these are only used for OpenAPI generation
// where Huma extracts type information from function signatures.
func StubHandlers() *Handlers {
	return &Handlers{
		HealthCheck: func(_ context.Context, _ *handlers.HealthInput) (*handlers.HealthOutput, error) {
			return nil, nil
		},
		ReadyCheck: func(_ context.Context, _ *handlers.HealthInput) (*handlers.HealthOutput, error) {
			return nil, nil
		},
		Version: func(_ context.Context, _ *handlers.VersionInput) (*handlers.VersionOutput, error) {
			return nil, nil
		},
		Status:  &stubStatusHandlers{},
		Device:  &stubDeviceHandlers{},
		Tally:   &stubTallyHandlers{},
		APIKey:  &stubAPIKeyHandlers{},
		Logging: &stubLoggingHandlers{},
	}
}

// --- Status stubs ---

type stubStatusHandlers struct{}

func (s *stubStatusHandlers) GetStatus(_ context.Context, _ *handlers.DaemonStatusInput) (*handlers.DaemonStatusOutput, error) {
	return nil, nil
}

// --- Device stubs ---

type stubDeviceHandlers struct{}

func (s *stubDeviceHandlers) ListDevices(_ context.Context, _ *handlers.ListDevicesInput) (*handlers.ListDevicesOutput, error) {
	return nil, nil
}

func (s *stubDeviceHandlers) GetDevice(_ context.Context, _ *handlers.GetDeviceInput) (*handlers.GetDeviceOutput, error) {
	return nil, nil
}

func (s *stubDeviceHandlers) SetDeviceState(_ context.Context, _ *handlers.SetDeviceStateInput) (*handlers.SetDeviceStateOutput, error) {
	return nil, nil
}

func (s *stubDeviceHandlers) RefreshDevices(_ context.Context, _ *handlers.RefreshDevicesInput) (*handlers.RefreshDevicesOutput, error) {
	return nil, nil
}

// --- Tally stubs ---

type stubTallyHandlers struct{}

func (s *stubTallyHandlers) SetTally(_ context.Context, _ *handlers.SetTallyInput) (*handlers.SetTallyOutput, error) {
	return nil, nil
}

// --- API Key stubs ---

type stubAPIKeyHandlers struct{}

func (s *stubAPIKeyHandlers) CreateAPIKey(_ context.Context, _ *handlers.CreateAPIKeyInput) (*handlers.CreateAPIKeyOutput, error) {
	return nil, nil
}

func (s *stubAPIKeyHandlers) ListAPIKeys(_ context.Context, _ *handlers.ListAPIKeysInput) (*handlers.ListAPIKeysOutput, error) {
	return nil, nil
}

func (s *stubAPIKeyHandlers) DeleteAPIKey(_ context.Context, _ *handlers.DeleteAPIKeyInput) (*handlers.DeleteAPIKeyOutput, error) {
	return nil, nil
}

func (s *stubAPIKeyHandlers) SetAPIKeyDisabled(_ context.Context, _ *handlers.SetAPIKeyDisabledInput) (*handlers.SetAPIKeyDisabledOutput, error) {
	return nil, nil
}

// --- Logging stubs ---

type stubLoggingHandlers struct{}

func (s *stubLoggingHandlers) GetLevel(_ context.Context, _ *handlers.GetLevelInput) (*handlers.GetLevelOutput, error) {
	return nil, nil
}

func (s *stubLoggingHandlers) SetLevel(_ context.Context, _ *handlers.SetLevelInput) (*handlers.SetLevelOutput, error) {
	return nil, nil
}
