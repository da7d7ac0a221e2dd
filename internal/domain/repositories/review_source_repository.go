package repositories

import (
	"context"
	"time"

	"github.com/garrettjsmith/localpresence/internal/domain/entities"
)

// ReviewSourceRepository defines the interface for review source state.
type ReviewSourceRepository interface {
	GetByID(ctx context.Context, id string) (*entities.ReviewSource, error)
	GetByIDs(ctx context.Context, ids []string) ([]*entities.ReviewSource, error)
	// ListSyncable returns up to limit sources with sync_status in
	// (pending, active, error) ordered by last_synced_at ascending with
	// nulls first, so never-synced sources go to the front.
	ListSyncable(ctx context.Context, limit int) ([]*entities.ReviewSource, error)
	// ListPending returns sources that have never completed a sync.
	ListPending(ctx context.Context, limit int) ([]*entities.ReviewSource, error)
	MarkActive(ctx context.Context, id string, stats entities.SourceStats, syncedAt time.Time) error
	// MarkError records the failure message and timestamp in the source
	// metadata and flips sync_status to error.
	MarkError(ctx context.Context, id, message string, failedAt time.Time) error
}

// IntegrationRepository resolves push-notification resource identifiers
// to review sources.
type IntegrationRepository interface {
	GetByExternalResource(ctx context.Context, platform entities.Platform, externalResourceID string) (*entities.PlatformIntegration, error)
}
