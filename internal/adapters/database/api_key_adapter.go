package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/garrettjsmith/localpresence/internal/domain/entities"
	"github.com/garrettjsmith/localpresence/internal/domain/repositories"
	"github.com/garrettjsmith/localpresence/internal/infrastructure/clients/postgres"
	apperrors "github.com/garrettjsmith/localpresence/pkg/errors"
)

// APIKeyAdapter implements the APIKeyRepository interface
type APIKeyAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewAPIKeyAdapter creates a new API key adapter
func NewAPIKeyAdapter(client *postgres.Client) repositories.APIKeyRepository {
	return &APIKeyAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetByTokenHash retrieves an active key by the SHA-256 hex of its token.
func (a *APIKeyAdapter) GetByTokenHash(ctx context.Context, tokenHash string) (*entities.APIKey, error) {
	query, args, err := a.db.Select(
		"id", "org_id", "label", "token_hash", "revoked_at", "created_at",
	).From("api_keys").
		Where(goqu.Ex{"token_hash": tokenHash}).
		Where(goqu.I("revoked_at").IsNull()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	var key entities.APIKey
	row := a.client.DB().QueryRowContext(ctx, query, args...)
	if err := row.Scan(&key.ID, &key.OrgID, &key.Label, &key.TokenHash, &key.RevokedAt, &key.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("api key not found")
		}
		return nil, apperrors.NewInternalError("failed to get api key", err)
	}

	return &key, nil
}
