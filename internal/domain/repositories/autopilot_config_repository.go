package repositories

import (
	"context"

	"github.com/garrettjsmith/localpresence/internal/domain/entities"
)

// AutopilotConfigRepository defines the interface for per-location
// autopilot configuration.
type AutopilotConfigRepository interface {
	// GetByLocation returns the location's config, or a NotFound error
	// when autopilot was never configured for it.
	GetByLocation(ctx context.Context, locationID string) (*entities.AutopilotConfig, error)
}
