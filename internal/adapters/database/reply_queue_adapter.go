package database

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/garrettjsmith/localpresence/internal/domain/entities"
	"github.com/garrettjsmith/localpresence/internal/domain/repositories"
	"github.com/garrettjsmith/localpresence/internal/infrastructure/clients/postgres"
	apperrors "github.com/garrettjsmith/localpresence/pkg/errors"
)

var replyQueueColumns = []interface{}{
	"id", "review_id", "reply_body", "status", "source", "scheduled_for",
	"queued_by", "attempts", "last_error", "created_at", "updated_at",
}

// ReplyQueueAdapter implements the ReplyQueueRepository interface
type ReplyQueueAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewReplyQueueAdapter creates a new reply queue adapter
func NewReplyQueueAdapter(client *postgres.Client) repositories.ReplyQueueRepository {
	return &ReplyQueueAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Insert adds an item to the reply queue
func (a *ReplyQueueAdapter) Insert(ctx context.Context, item *entities.ReplyQueueItem) error {
	record := goqu.Record{
		"id":            item.ID,
		"review_id":     item.ReviewID,
		"reply_body":    item.ReplyBody,
		"status":        item.Status,
		"source":        item.Source,
		"scheduled_for": item.ScheduledFor,
		"queued_by":     item.QueuedBy,
		"attempts":      item.Attempts,
		"last_error":    item.LastError,
		"created_at":    item.CreatedAt,
		"updated_at":    item.UpdatedAt,
	}

	query, args, err := a.db.Insert("reply_queue").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	_, err = a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to insert reply queue item", err)
	}

	return nil
}

// HasPendingAutopilot reports whether an unresolved autopilot item already
// exists for the review
func (a *ReplyQueueAdapter) HasPendingAutopilot(ctx context.Context, reviewID string) (bool, error) {
	query, args, err := a.db.Select(goqu.COUNT("id")).
		From("reply_queue").
		Where(goqu.Ex{
			"review_id": reviewID,
			"source":    entities.QueueSourceAIAutopilot,
			"status":    entities.QueueStatusPending,
		}).
		ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build query", err)
	}

	var count int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, apperrors.NewInternalError("failed to count pending autopilot items", err)
	}

	return count > 0, nil
}

// ListDue returns pending items whose not-before time has passed, oldest first
func (a *ReplyQueueAdapter) ListDue(ctx context.Context, now time.Time, limit int) ([]*entities.ReplyQueueItem, error) {
	ds := a.db.Select(replyQueueColumns...).
		From("reply_queue").
		Where(
			goqu.Ex{"status": entities.QueueStatusPending},
			goqu.Or(
				goqu.I("scheduled_for").IsNull(),
				goqu.I("scheduled_for").Lte(now),
			),
		).
		Order(goqu.I("created_at").Asc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list due reply queue items", err)
	}
	defer rows.Close()

	var items []*entities.ReplyQueueItem
	for rows.Next() {
		item := &entities.ReplyQueueItem{}
		err := rows.Scan(
			&item.ID,
			&item.ReviewID,
			&item.ReplyBody,
			&item.Status,
			&item.Source,
			&item.ScheduledFor,
			&item.QueuedBy,
			&item.Attempts,
			&item.LastError,
			&item.CreatedAt,
			&item.UpdatedAt,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan reply queue item", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate reply queue items", err)
	}

	return items, nil
}

// MarkSent resolves an item after a successful dispatch
func (a *ReplyQueueAdapter) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	return a.update(ctx, id, goqu.Record{
		"status":     entities.QueueStatusSent,
		"updated_at": sentAt,
	})
}

// MarkFailed terminally fails an item
func (a *ReplyQueueAdapter) MarkFailed(ctx context.Context, id, errMsg string) error {
	return a.update(ctx, id, goqu.Record{
		"status":     entities.QueueStatusFailed,
		"last_error": errMsg,
		"updated_at": time.Now(),
	})
}

// Reschedule bumps the attempt counter and pushes the next try out
func (a *ReplyQueueAdapter) Reschedule(ctx context.Context, id string, attempts int, nextAt time.Time, errMsg string) error {
	return a.update(ctx, id, goqu.Record{
		"attempts":      attempts,
		"scheduled_for": nextAt,
		"last_error":    errMsg,
		"updated_at":    time.Now(),
	})
}

func (a *ReplyQueueAdapter) update(ctx context.Context, id string, record goqu.Record) error {
	query, args, err := a.db.Update("reply_queue").
		Set(record).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update reply queue item", err)
	}

	return requireRow(result, fmt.Sprintf("reply queue item with id %s not found", id))
}
