package routes

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/tallyd/internal/http/mw"
)

// Register registers all API routes with the given Huma API instance.
// Pass real handler implementations for the main server, or stub implementations
// for OpenAPI generation.
func Register(api huma.API, h *Handlers) {
	// --- Health ---
	mw.PublicGet(api, "/api/v1/health", h.HealthCheck,
		mw.WithTags("Health"),
		mw.WithSummary("Health check"),
		mw.WithDescription("Returns service health status. This endpoint does not require authentication."),
		mw.WithOperationID("healthCheck"))

	mw.HiddenGet(api, "/healthz", h.HealthCheck)
	mw.HiddenGet(api, "/readyz", h.ReadyCheck)

	// --- Version ---
	mw.PublicGet(api, "/api/v1/version", h.Version,
		mw.WithTags("Version"),
		mw.WithSummary("Daemon version"),
		mw.WithDescription("Returns the running daemon's version, commit, and build date. This endpoint does not require authentication."),
		mw.WithOperationID("getVersion"))

	// --- Status ---
	mw.ProtectedGet(api, "/api/v1/status", h.Status.GetStatus,
		mw.WithTags("Status"),
		mw.WithSummary("Daemon status"),
		mw.WithDescription("Returns the debounced transport state, the last fleet actuation, and the configured devices."),
		mw.WithOperationID("getStatus"))

	// --- Devices ---
	mw.ProtectedGet(api, "/api/v1/devices", h.Device.ListDevices,
		mw.WithTags("Devices"),
		mw.WithSummary("List all devices"),
		mw.WithDescription("Returns all configured tally devices as a map keyed by device ID."),
		mw.WithOperationID("listDevices"))

	mw.ProtectedGet(api, "/api/v1/devices/{id}", h.Device.GetDevice,
		mw.WithTags("Devices"),
		mw.WithSummary("Get a device"),
		mw.WithOperationID("getDevice"))

	mw.ProtectedPut(api, "/api/v1/devices/{id}/state", h.Device.SetDeviceState,
		mw.WithTags("Devices"),
		mw.WithSummary("Set device state"),
		mw.WithDescription("Drive a single device to a power state, bypassing the transport machine."),
		mw.WithOperationID("setDeviceState"))

	mw.ProtectedPost(api, "/api/v1/devices/refresh", h.Device.RefreshDevices,
		mw.WithTags("Devices"),
		mw.WithSummary("Refresh devices"),
		mw.WithDescription("Force a discovery sweep and return the refreshed fleet."),
		mw.WithOperationID("refreshDevices"))

	// --- Tally ---
	mw.ProtectedPut(api, "/api/v1/tally", h.Tally.SetTally,
		mw.WithTags("Tally"),
		mw.WithSummary("Set tally state"),
		mw.WithDescription("Drive every configured device to a power state. Returns the full batch with per-device outcomes; partial failure does not fail the request. The next settled transport transition supersedes a manual override."),
		mw.WithOperationID("setTally"))

	// --- API Keys ---
	mw.ProtectedPost(api, "/api/v1/apikeys", h.APIKey.CreateAPIKey,
		mw.WithTags("API Keys"),
		mw.WithSummary("Create an API key"),
		mw.WithOperationID("createApiKey"),
		mw.WithDefaultStatus(201))

	mw.ProtectedGet(api, "/api/v1/apikeys", h.APIKey.ListAPIKeys,
		mw.WithTags("API Keys"),
		mw.WithSummary("List API keys"),
		mw.WithOperationID("listApiKeys"))

	mw.ProtectedDelete(api, "/api/v1/apikeys/{key}", h.APIKey.DeleteAPIKey,
		mw.WithTags("API Keys"),
		mw.WithSummary("Delete an API key"),
		mw.WithOperationID("deleteApiKey"),
		mw.WithDefaultStatus(204))

	mw.ProtectedPut(api, "/api/v1/apikeys/{key}/disabled", h.APIKey.SetAPIKeyDisabled,
		mw.WithTags("API Keys"),
		mw.WithSummary("Enable or disable an API key"),
		mw.WithOperationID("setApiKeyDisabled"))

	// --- Logging ---
	mw.ProtectedGet(api, "/api/v1/logging/level", h.Logging.GetLevel,
		mw.WithTags("Logging"),
		mw.WithSummary("Get global log level"),
		mw.WithOperationID("getLogLevel"))

	mw.ProtectedPut(api, "/api/v1/logging/level", h.Logging.SetLevel,
		mw.WithTags("Logging"),
		mw.WithSummary("Set global log level"),
		mw.WithDescription("Changes the global log level at runtime. Valid values: debug, info, warn, error."),
		mw.WithOperationID("setLogLevel"))

	// The /api/v1/events websocket is registered as a raw Chi route in
	// server.go; Huma cannot describe an upgraded connection.
}
