package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/lib/pq"

	"github.com/garrettjsmith/localpresence/internal/domain/entities"
	"github.com/garrettjsmith/localpresence/internal/domain/repositories"
	"github.com/garrettjsmith/localpresence/internal/infrastructure/clients/postgres"
	apperrors "github.com/garrettjsmith/localpresence/pkg/errors"
)

// AutopilotConfigAdapter implements the AutopilotConfigRepository interface
type AutopilotConfigAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewAutopilotConfigAdapter creates a new autopilot config adapter
func NewAutopilotConfigAdapter(client *postgres.Client) repositories.AutopilotConfigRepository {
	return &AutopilotConfigAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetByLocation retrieves the autopilot configuration for a location
func (a *AutopilotConfigAdapter) GetByLocation(ctx context.Context, locationID string) (*entities.AutopilotConfig, error) {
	query, args, err := a.db.Select(
		"id", "location_id", "enabled", "auto_reply_ratings", "require_approval",
		"delay_min_minutes", "delay_max_minutes", "tone", "business_context",
		"created_at", "updated_at",
	).From("autopilot_configs").
		Where(goqu.Ex{"location_id": locationID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	cfg := &entities.AutopilotConfig{}
	var ratings pq.Int64Array
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&cfg.ID,
		&cfg.LocationID,
		&cfg.Enabled,
		&ratings,
		&cfg.RequireApproval,
		&cfg.DelayMinMinutes,
		&cfg.DelayMaxMinutes,
		&cfg.Tone,
		&cfg.BusinessContext,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no autopilot config for location %s", locationID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get autopilot config", err)
	}

	for _, r := range ratings {
		cfg.AutoReplyRatings = append(cfg.AutoReplyRatings, int(r))
	}

	return cfg, nil
}
