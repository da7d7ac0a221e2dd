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

// LocationAdapter implements the LocationRepository interface
type LocationAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewLocationAdapter creates a new location adapter
func NewLocationAdapter(client *postgres.Client) repositories.LocationRepository {
	return &LocationAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetByID retrieves a location by ID
func (a *LocationAdapter) GetByID(ctx context.Context, id string) (*entities.Location, error) {
	query, args, err := a.db.Select(
		"id", "org_id", "business_name", "address", "created_at", "updated_at",
	).From("locations").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	location := &entities.Location{}
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&location.ID,
		&location.OrgID,
		&location.BusinessName,
		&location.Address,
		&location.CreatedAt,
		&location.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("location with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get location", err)
	}

	return location, nil
}
