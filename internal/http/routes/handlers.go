package routes

import (
	"context"

	"github.com/jmylchreest/tallyd/internal/http/handlers"
)

// Handlers aggregates all handler interfaces for route registration.
// For the main server, pass real handler implementations.
// For OpenAPI generation, pass stub implementations.
type Handlers struct {
	HealthCheck func(ctx context.Context, input *handlers.HealthInput) (*handlers.HealthOutput, error)
	ReadyCheck  func(ctx context.Context, input *handlers.HealthInput) (*handlers.HealthOutput, error)
	Version     func(ctx context.Context, input *handlers.VersionInput) (*handlers.VersionOutput, error)
	Status      handlers.StatusHandlers
	Device      handlers.DeviceHandlers
	Tally       handlers.TallyHandlers
	APIKey      handlers.APIKeyHandlers
	Logging     handlers.LoggingHandlers
}
