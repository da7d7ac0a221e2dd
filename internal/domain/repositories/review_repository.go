package repositories

import (
	"context"
	"time"

	"github.com/garrettjsmith/localpresence/internal/domain/entities"
)

// UpsertResult reports what the idempotent write actually did, so the
// sync coordinator can fan out to alerts/autopilot only on true novelty.
type UpsertResult struct {
	Inserted bool
	Changed  bool
}

// New reports whether the row is worth fanning out: freshly inserted or
// updated with different content.
func (r UpsertResult) New() bool {
	return r.Inserted || r.Changed
}

// ReviewReply carries the fields written when a reply is recorded.
type ReviewReply struct {
	Body        string
	PublishedAt time.Time
	RepliedBy   string
	RepliedVia  entities.RepliedVia
}

// ReviewFilter narrows review listings.
type ReviewFilter struct {
	LocationID string
	OrgID      string
	Limit      int
	Offset     int
}

// ReviewRepository defines the interface for review persistence.
type ReviewRepository interface {
	// Upsert writes a review keyed on (source_id, platform_review_id).
	// Safe to call concurrently for the same key; last write wins.
	Upsert(ctx context.Context, review *entities.Review) (UpsertResult, error)
	GetByID(ctx context.Context, id string) (*entities.Review, error)
	ListByIDs(ctx context.Context, ids []string) ([]*entities.Review, error)
	List(ctx context.Context, filter ReviewFilter) ([]*entities.Review, error)
	SetReply(ctx context.Context, reviewID string, reply ReviewReply) error
	SetAIDraft(ctx context.Context, reviewID, draft string, generatedAt time.Time) error
	UpdateStatus(ctx context.Context, reviewID string, status entities.ReviewStatus, clearDraft bool) error
}
