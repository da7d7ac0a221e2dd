package search

import (
	"context"

	"github.com/garrettjsmith/localpresence/internal/domain/entities"
	"github.com/garrettjsmith/localpresence/internal/domain/providers"
	"github.com/garrettjsmith/localpresence/internal/infrastructure/clients/typesense"
	apperrors "github.com/garrettjsmith/localpresence/pkg/errors"
)

// ReviewIndexAdapter implements the ReviewSearchRepository interface on
// Typesense. The dashboard searches this index; Postgres stays the
// source of truth.
type ReviewIndexAdapter struct {
	client *typesense.Client
}

// NewReviewIndexAdapter creates a new review index adapter
func NewReviewIndexAdapter(client *typesense.Client) providers.ReviewSearchRepository {
	return &ReviewIndexAdapter{client: client}
}

// InitSchema ensures the reviews collection exists
func (a *ReviewIndexAdapter) InitSchema(ctx context.Context) error {
	if err := a.client.InitSchema(ctx); err != nil {
		return apperrors.NewExternalError("failed to initialize review index", err)
	}
	return nil
}

// Index upserts one review document into the search index
func (a *ReviewIndexAdapter) Index(ctx context.Context, review *entities.Review) error {
	document := map[string]interface{}{
		"id":            review.ID,
		"location_id":   review.LocationID,
		"org_id":        review.OrgID,
		"platform":      string(review.Platform),
		"reviewer_name": review.ReviewerName,
		"body":          review.Body,
		"status":        string(review.Status),
		"has_reply":     review.HasReply(),
		"published_at":  review.PublishedAt.Unix(),
	}
	if review.Rating != nil {
		document["rating"] = int32(*review.Rating)
	}
	if review.Sentiment != "" {
		document["sentiment"] = string(review.Sentiment)
	}

	if err := a.client.IndexReview(ctx, document); err != nil {
		return apperrors.NewExternalError("failed to index review", err)
	}
	return nil
}
