package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/garrettjsmith/localpresence/internal/domain/entities"
	"github.com/garrettjsmith/localpresence/internal/domain/repositories"
	"github.com/garrettjsmith/localpresence/internal/infrastructure/clients/postgres"
	apperrors "github.com/garrettjsmith/localpresence/pkg/errors"
)

var reviewSourceColumns = []interface{}{
	"id", "location_id", "org_id", "platform", "resource_handle",
	"sync_status", "last_synced_at", "total_review_count", "average_rating",
	"metadata", "created_at", "updated_at",
}

// ReviewSourceAdapter implements the ReviewSourceRepository interface
type ReviewSourceAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewReviewSourceAdapter creates a new review source adapter
func NewReviewSourceAdapter(client *postgres.Client) repositories.ReviewSourceRepository {
	return &ReviewSourceAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetByID retrieves a review source by ID
func (a *ReviewSourceAdapter) GetByID(ctx context.Context, id string) (*entities.ReviewSource, error) {
	query, args, err := a.db.Select(reviewSourceColumns...).
		From("review_sources").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	source, err := scanReviewSource(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("review source with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get review source", err)
	}

	return source, nil
}

// GetByIDs retrieves review sources by their IDs
func (a *ReviewSourceAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.ReviewSource, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := a.db.Select(reviewSourceColumns...).
		From("review_sources").
		Where(goqu.Ex{"id": ids}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	return a.querySources(ctx, query, args)
}

// ListSyncable returns sources eligible for the incremental sync pass,
// never-synced sources first, then stalest first.
func (a *ReviewSourceAdapter) ListSyncable(ctx context.Context, limit int) ([]*entities.ReviewSource, error) {
	query, args, err := a.db.Select(reviewSourceColumns...).
		From("review_sources").
		Where(goqu.Ex{"sync_status": []string{
			string(entities.SyncStatusPending),
			string(entities.SyncStatusActive),
			string(entities.SyncStatusError),
		}}).
		Order(goqu.I("last_synced_at").Asc().NullsFirst()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	return a.querySources(ctx, query, args)
}

// ListPending returns sources that have never completed a sync
func (a *ReviewSourceAdapter) ListPending(ctx context.Context, limit int) ([]*entities.ReviewSource, error) {
	ds := a.db.Select(reviewSourceColumns...).
		From("review_sources").
		Where(goqu.Ex{"sync_status": string(entities.SyncStatusPending)}).
		Order(goqu.I("created_at").Asc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	return a.querySources(ctx, query, args)
}

// MarkActive records a successful sync with the platform-reported stats
func (a *ReviewSourceAdapter) MarkActive(ctx context.Context, id string, stats entities.SourceStats, syncedAt time.Time) error {
	query, args, err := a.db.Update("review_sources").
		Set(goqu.Record{
			"sync_status":        entities.SyncStatusActive,
			"last_synced_at":     syncedAt,
			"total_review_count": stats.TotalReviewCount,
			"average_rating":     stats.AverageRating,
			"metadata":           goqu.L("metadata - ? - ?", entities.MetadataLastError, entities.MetadataLastErrorAt),
			"updated_at":         time.Now(),
		}).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to mark source active", err)
	}

	return requireRow(result, fmt.Sprintf("review source with id %s not found", id))
}

// MarkError flips the source to error and records the failure in metadata
func (a *ReviewSourceAdapter) MarkError(ctx context.Context, id, message string, failedAt time.Time) error {
	failure, err := json.Marshal(map[string]interface{}{
		entities.MetadataLastError:   message,
		entities.MetadataLastErrorAt: failedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return apperrors.NewInternalError("failed to marshal failure metadata", err)
	}

	query, args, err := a.db.Update("review_sources").
		Set(goqu.Record{
			"sync_status": entities.SyncStatusError,
			"metadata":    goqu.L("COALESCE(metadata, '{}'::jsonb) || ?::jsonb", string(failure)),
			"updated_at":  time.Now(),
		}).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to mark source error", err)
	}

	return requireRow(result, fmt.Sprintf("review source with id %s not found", id))
}

func (a *ReviewSourceAdapter) querySources(ctx context.Context, query string, args []interface{}) ([]*entities.ReviewSource, error) {
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list review sources", err)
	}
	defer rows.Close()

	var sources []*entities.ReviewSource
	for rows.Next() {
		source, err := scanReviewSource(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan review source", err)
		}
		sources = append(sources, source)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate review sources", err)
	}

	return sources, nil
}

func scanReviewSource(row rowScanner) (*entities.ReviewSource, error) {
	source := &entities.ReviewSource{}
	var metadata []byte

	err := row.Scan(
		&source.ID,
		&source.LocationID,
		&source.OrgID,
		&source.Platform,
		&source.ResourceHandle,
		&source.SyncStatus,
		&source.LastSyncedAt,
		&source.TotalReviewCount,
		&source.AverageRating,
		&metadata,
		&source.CreatedAt,
		&source.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &source.Metadata); err != nil {
			return nil, err
		}
	}

	return source, nil
}
