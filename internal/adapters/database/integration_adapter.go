package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/garrettjsmith/localpresence/internal/domain/entities"
	"github.com/garrettjsmith/localpresence/internal/domain/repositories"
	"github.com/garrettjsmith/localpresence/internal/infrastructure/clients/postgres"
	apperrors "github.com/garrettjsmith/localpresence/pkg/errors"
)

// IntegrationAdapter implements the IntegrationRepository interface
type IntegrationAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewIntegrationAdapter creates a new integration adapter
func NewIntegrationAdapter(client *postgres.Client) repositories.IntegrationRepository {
	return &IntegrationAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetByExternalResource resolves a platform push-notification resource
// identifier to the review source it belongs to
func (a *IntegrationAdapter) GetByExternalResource(ctx context.Context, platform entities.Platform, externalResourceID string) (*entities.PlatformIntegration, error) {
	query, args, err := a.db.Select(
		"id", "source_id", "platform", "external_resource_id", "created_at",
	).From("platform_integrations").
		Where(goqu.Ex{
			"platform":             platform,
			"external_resource_id": externalResourceID,
		}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	integration := &entities.PlatformIntegration{}
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&integration.ID,
		&integration.SourceID,
		&integration.Platform,
		&integration.ExternalResourceID,
		&integration.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(
			fmt.Sprintf("no %s integration for resource %s", platform, externalResourceID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get integration", err)
	}

	return integration, nil
}
