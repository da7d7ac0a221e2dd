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

var reviewColumns = []interface{}{
	"id", "source_id", "location_id", "org_id", "platform", "platform_review_id",
	"reviewer_name", "reviewer_photo_url", "reviewer_is_anonymous",
	"rating", "original_rating", "body", "language", "published_at", "updated_at",
	"reply_body", "reply_published_at", "replied_by", "replied_via",
	"sentiment", "status", "ai_draft", "ai_draft_generated_at",
	"platform_metadata", "fetched_at", "created_at",
}

// ReviewAdapter implements the ReviewRepository interface
type ReviewAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewReviewAdapter creates a new review adapter
func NewReviewAdapter(client *postgres.Client) repositories.ReviewRepository {
	return &ReviewAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Upsert writes a review keyed on (source_id, platform_review_id). The
// conditional DO UPDATE only touches the row when the synced content
// actually differs, so an unchanged review returns no row at all and the
// caller can skip fan-out. A reply first seen on the platform counts as
// a change and marks the row responded, but reply fields never
// overwrite a reply already recorded locally.
func (a *ReviewAdapter) Upsert(ctx context.Context, review *entities.Review) (repositories.UpsertResult, error) {
	metadata, err := marshalMetadata(review.PlatformMetadata)
	if err != nil {
		return repositories.UpsertResult{}, apperrors.NewInternalError("failed to marshal platform metadata", err)
	}

	query := `
		INSERT INTO reviews (
			id, source_id, location_id, org_id, platform, platform_review_id,
			reviewer_name, reviewer_photo_url, reviewer_is_anonymous,
			rating, original_rating, body, language, published_at, updated_at,
			reply_body, reply_published_at, replied_via,
			sentiment, status, platform_metadata, fetched_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
		ON CONFLICT (source_id, platform_review_id) DO UPDATE SET
			reviewer_name = EXCLUDED.reviewer_name,
			reviewer_photo_url = EXCLUDED.reviewer_photo_url,
			reviewer_is_anonymous = EXCLUDED.reviewer_is_anonymous,
			rating = EXCLUDED.rating,
			original_rating = EXCLUDED.original_rating,
			body = EXCLUDED.body,
			language = EXCLUDED.language,
			updated_at = EXCLUDED.updated_at,
			reply_body = COALESCE(reviews.reply_body, EXCLUDED.reply_body),
			reply_published_at = COALESCE(reviews.reply_published_at, EXCLUDED.reply_published_at),
			replied_via = COALESCE(reviews.replied_via, EXCLUDED.replied_via),
			status = CASE
				WHEN reviews.reply_body IS NULL AND EXCLUDED.reply_body IS NOT NULL
				THEN 'responded' ELSE reviews.status END,
			sentiment = EXCLUDED.sentiment,
			platform_metadata = EXCLUDED.platform_metadata,
			fetched_at = EXCLUDED.fetched_at
		WHERE (reviews.body, reviews.rating, reviews.updated_at)
			IS DISTINCT FROM (EXCLUDED.body, EXCLUDED.rating, EXCLUDED.updated_at)
			OR (reviews.reply_body IS NULL AND EXCLUDED.reply_body IS NOT NULL)
		RETURNING id, (xmax = 0) AS inserted
	`

	var (
		id       string
		inserted bool
	)
	err = a.client.DB().QueryRowContext(ctx, query,
		review.ID,
		review.SourceID,
		review.LocationID,
		review.OrgID,
		review.Platform,
		review.PlatformReviewID,
		review.ReviewerName,
		review.ReviewerPhotoURL,
		review.ReviewerIsAnonymous,
		review.Rating,
		review.OriginalRating,
		review.Body,
		review.Language,
		review.PublishedAt,
		review.UpdatedAt,
		review.ReplyBody,
		review.ReplyPublishedAt,
		review.RepliedVia,
		nullString(string(review.Sentiment)),
		review.Status,
		metadata,
		review.FetchedAt,
		review.CreatedAt,
	).Scan(&id, &inserted)

	if err == sql.ErrNoRows {
		// Conflict with no content change: the conditional update matched
		// nothing, so the existing row stands as-is.
		return repositories.UpsertResult{}, nil
	}
	if err != nil {
		return repositories.UpsertResult{}, apperrors.NewInternalError("failed to upsert review", err)
	}

	review.ID = id
	return repositories.UpsertResult{Inserted: inserted, Changed: !inserted}, nil
}

// GetByID retrieves a review by ID
func (a *ReviewAdapter) GetByID(ctx context.Context, id string) (*entities.Review, error) {
	query, args, err := a.db.Select(reviewColumns...).
		From("reviews").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	review, err := scanReview(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("review with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get review", err)
	}

	return review, nil
}

// ListByIDs retrieves reviews by their IDs
func (a *ReviewAdapter) ListByIDs(ctx context.Context, ids []string) ([]*entities.Review, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := a.db.Select(reviewColumns...).
		From("reviews").
		Where(goqu.Ex{"id": ids}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	return a.queryReviews(ctx, query, args)
}

// List retrieves reviews matching the filter, newest first
func (a *ReviewAdapter) List(ctx context.Context, filter repositories.ReviewFilter) ([]*entities.Review, error) {
	ds := a.db.Select(reviewColumns...).From("reviews")

	if filter.OrgID != "" {
		ds = ds.Where(goqu.Ex{"org_id": filter.OrgID})
	}
	if filter.LocationID != "" {
		ds = ds.Where(goqu.Ex{"location_id": filter.LocationID})
	}

	ds = ds.Order(goqu.I("published_at").Desc())
	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	return a.queryReviews(ctx, query, args)
}

// SetReply records a delivered reply and marks the review responded
func (a *ReviewAdapter) SetReply(ctx context.Context, reviewID string, reply repositories.ReviewReply) error {
	record := goqu.Record{
		"reply_body":         reply.Body,
		"reply_published_at": reply.PublishedAt,
		"replied_by":         reply.RepliedBy,
		"replied_via":        reply.RepliedVia,
		"status":             entities.ReviewStatusResponded,
		"ai_draft":           nil,
	}

	query, args, err := a.db.Update("reviews").
		Set(record).
		Where(goqu.Ex{"id": reviewID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to set reply", err)
	}

	return requireRow(result, fmt.Sprintf("review with id %s not found", reviewID))
}

// SetAIDraft stores a generated draft on the review
func (a *ReviewAdapter) SetAIDraft(ctx context.Context, reviewID, draft string, generatedAt time.Time) error {
	query, args, err := a.db.Update("reviews").
		Set(goqu.Record{
			"ai_draft":              draft,
			"ai_draft_generated_at": generatedAt,
		}).
		Where(goqu.Ex{"id": reviewID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to set ai draft", err)
	}

	return requireRow(result, fmt.Sprintf("review with id %s not found", reviewID))
}

// UpdateStatus moves a review through the response workflow
func (a *ReviewAdapter) UpdateStatus(ctx context.Context, reviewID string, status entities.ReviewStatus, clearDraft bool) error {
	record := goqu.Record{"status": status}
	if clearDraft {
		record["ai_draft"] = nil
		record["ai_draft_generated_at"] = nil
	}

	query, args, err := a.db.Update("reviews").
		Set(record).
		Where(goqu.Ex{"id": reviewID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update review status", err)
	}

	return requireRow(result, fmt.Sprintf("review with id %s not found", reviewID))
}

func (a *ReviewAdapter) queryReviews(ctx context.Context, query string, args []interface{}) ([]*entities.Review, error) {
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list reviews", err)
	}
	defer rows.Close()

	var reviews []*entities.Review
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan review", err)
		}
		reviews = append(reviews, review)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate reviews", err)
	}

	return reviews, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReview(row rowScanner) (*entities.Review, error) {
	review := &entities.Review{}
	var (
		sentiment  sql.NullString
		repliedVia sql.NullString
		metadata   []byte
	)

	err := row.Scan(
		&review.ID,
		&review.SourceID,
		&review.LocationID,
		&review.OrgID,
		&review.Platform,
		&review.PlatformReviewID,
		&review.ReviewerName,
		&review.ReviewerPhotoURL,
		&review.ReviewerIsAnonymous,
		&review.Rating,
		&review.OriginalRating,
		&review.Body,
		&review.Language,
		&review.PublishedAt,
		&review.UpdatedAt,
		&review.ReplyBody,
		&review.ReplyPublishedAt,
		&review.RepliedBy,
		&repliedVia,
		&sentiment,
		&review.Status,
		&review.AIDraft,
		&review.AIDraftGeneratedAt,
		&metadata,
		&review.FetchedAt,
		&review.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if sentiment.Valid {
		review.Sentiment = entities.Sentiment(sentiment.String)
	}
	if repliedVia.Valid {
		via := entities.RepliedVia(repliedVia.String)
		review.RepliedVia = &via
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &review.PlatformMetadata); err != nil {
			return nil, err
		}
	}

	return review, nil
}

func marshalMetadata(metadata map[string]interface{}) ([]byte, error) {
	if metadata == nil {
		return nil, nil
	}
	return json.Marshal(metadata)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func requireRow(result sql.Result, notFoundMsg string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to check rows affected", err)
	}
	if affected == 0 {
		return apperrors.NewNotFoundError(notFoundMsg)
	}
	return nil
}
