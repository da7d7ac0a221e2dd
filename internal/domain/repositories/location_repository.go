package repositories

import (
	"context"

	"github.com/garrettjsmith/localpresence/internal/domain/entities"
)

// LocationRepository defines the interface for location lookups.
type LocationRepository interface {
	GetByID(ctx context.Context, id string) (*entities.Location, error)
}
