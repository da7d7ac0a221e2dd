package repositories

import (
	"context"
	"time"

	"github.com/garrettjsmith/localpresence/internal/domain/entities"
)

// ReplyQueueRepository defines the interface for the deferred-reply queue.
type ReplyQueueRepository interface {
	Insert(ctx context.Context, item *entities.ReplyQueueItem) error
	// HasPendingAutopilot reports whether an unresolved ai_autopilot item
	// already exists for the review. Checked before autopilot inserts.
	HasPendingAutopilot(ctx context.Context, reviewID string) (bool, error)
	// ListDue returns pending items whose scheduled_for is null or has
	// passed, oldest first.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*entities.ReplyQueueItem, error)
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	MarkFailed(ctx context.Context, id, errMsg string) error
	// Reschedule bumps the attempt counter and pushes the next try out.
	Reschedule(ctx context.Context, id string, attempts int, nextAt time.Time, errMsg string) error
}
