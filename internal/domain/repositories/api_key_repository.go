package repositories

import (
	"context"

	"github.com/garrettjsmith/localpresence/internal/domain/entities"
)

// APIKeyRepository defines the interface for API key lookups.
type APIKeyRepository interface {
	GetByTokenHash(ctx context.Context, tokenHash string) (*entities.APIKey, error)
}
