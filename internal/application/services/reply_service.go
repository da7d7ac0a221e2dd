package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garrettjsmith/localpresence/internal/domain/entities"
	"github.com/garrettjsmith/localpresence/internal/domain/providers"
	"github.com/garrettjsmith/localpresence/internal/domain/repositories"
	apperrors "github.com/garrettjsmith/localpresence/pkg/errors"
)

// PlatformResolver resolves a platform name to its adapter.
type PlatformResolver interface {
	ForPlatform(platform entities.Platform) (providers.ReviewPlatform, error)
}

// ReplyOutcome reports how one reply was handled.
type ReplyOutcome struct {
	ReviewID  string                `json:"review_id"`
	PostedVia string                `json:"posted_via"` // api, queued, or manual
	RepliedAt *time.Time            `json:"replied_at,omitempty"`
	QueueItem *string               `json:"queue_item_id,omitempty"`
	Status    entities.ReviewStatus `json:"status"`
}

// BulkReplySummary aggregates outcomes of a bulk reply.
type BulkReplySummary struct {
	Posted   int               `json:"posted"`
	Queued   int               `json:"queued"`
	Stored   int               `json:"stored"`
	Failed   int               `json:"failed"`
	Failures map[string]string `json:"failures,omitempty"`
}

// ReplyService dispatches review replies to platforms, falling back to
// the retry queue when the platform rejects the post.
type ReplyService struct {
	reviewRepo repositories.ReviewRepository
	queueRepo  repositories.ReplyQueueRepository
	platforms  PlatformResolver
	bus        providers.EventBus
	now        func() time.Time
}

// NewReplyService creates a new reply service
func NewReplyService(
	reviewRepo repositories.ReviewRepository,
	queueRepo repositories.ReplyQueueRepository,
	platforms PlatformResolver,
	bus providers.EventBus,
) *ReplyService {
	return &ReplyService{
		reviewRepo: reviewRepo,
		queueRepo:  queueRepo,
		platforms:  platforms,
		bus:        bus,
		now:        time.Now,
	}
}

// Reply posts a reply to the review's platform on behalf of actor.
// Platforms with a reply API get an immediate post; a failed post lands
// on the retry queue and still reports success to the caller. Platforms
// without a reply API store the reply as posted manually out-of-band.
func (s *ReplyService) Reply(ctx context.Context, orgID, reviewID, text, actor string) (*ReplyOutcome, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewValidationError("reply text is required")
	}

	review, err := s.reviewRepo.GetByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if orgID != "" && review.OrgID != orgID {
		return nil, apperrors.NewUnauthorizedError("review does not belong to your organization")
	}

	platform, err := s.platforms.ForPlatform(review.Platform)
	if err != nil || !platform.SupportsReplies() {
		return s.storeManualReply(ctx, review, text, actor)
	}

	handle := review.ReplyResource()
	if handle == "" {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("review %s has no reply handle; re-sync the source first", reviewID))
	}

	if err := platform.PostReply(ctx, handle, text); err != nil {
		return s.queueRetry(ctx, review, text, actor, err)
	}

	now := s.now()
	if err := s.reviewRepo.SetReply(ctx, review.ID, repositories.ReviewReply{
		Body:        text,
		PublishedAt: now,
		RepliedBy:   actor,
		RepliedVia:  entities.RepliedViaAPI,
	}); err != nil {
		return nil, err
	}
	s.publishReplied(ctx, review)

	return &ReplyOutcome{
		ReviewID:  review.ID,
		PostedVia: "api",
		RepliedAt: &now,
		Status:    entities.ReviewStatusResponded,
	}, nil
}

// BulkReply replies to several reviews with the same text, isolating
// failures per review.
func (s *ReplyService) BulkReply(ctx context.Context, orgID string, reviewIDs []string, text, actor string) (*BulkReplySummary, error) {
	if len(reviewIDs) == 0 {
		return nil, apperrors.NewValidationError("review ids are required")
	}

	summary := &BulkReplySummary{Failures: map[string]string{}}
	for _, id := range reviewIDs {
		outcome, err := s.Reply(ctx, orgID, id, text, actor)
		if err != nil {
			summary.Failed++
			summary.Failures[id] = err.Error()
			continue
		}
		switch outcome.PostedVia {
		case "api":
			summary.Posted++
		case "queued":
			summary.Queued++
		default:
			summary.Stored++
		}
	}

	if len(summary.Failures) == 0 {
		summary.Failures = nil
	}
	return summary, nil
}

// UpdateStatus moves a review through the response workflow. Archiving
// discards any pending AI draft.
func (s *ReplyService) UpdateStatus(ctx context.Context, orgID, reviewID string, status entities.ReviewStatus) error {
	switch status {
	case entities.ReviewStatusNew, entities.ReviewStatusSeen, entities.ReviewStatusFlagged,
		entities.ReviewStatusResponded, entities.ReviewStatusArchived:
	default:
		return apperrors.NewValidationError(fmt.Sprintf("invalid review status %q", status))
	}

	review, err := s.reviewRepo.GetByID(ctx, reviewID)
	if err != nil {
		return err
	}
	if orgID != "" && review.OrgID != orgID {
		return apperrors.NewUnauthorizedError("review does not belong to your organization")
	}

	clearDraft := status == entities.ReviewStatusArchived
	return s.reviewRepo.UpdateStatus(ctx, reviewID, status, clearDraft)
}

func (s *ReplyService) storeManualReply(ctx context.Context, review *entities.Review, text, actor string) (*ReplyOutcome, error) {
	now := s.now()
	if err := s.reviewRepo.SetReply(ctx, review.ID, repositories.ReviewReply{
		Body:        text,
		PublishedAt: now,
		RepliedBy:   actor,
		RepliedVia:  entities.RepliedViaManual,
	}); err != nil {
		return nil, err
	}
	s.publishReplied(ctx, review)

	return &ReplyOutcome{
		ReviewID:  review.ID,
		PostedVia: "manual",
		RepliedAt: &now,
		Status:    entities.ReviewStatusResponded,
	}, nil
}

// queueRetry turns a failed platform post into a pending queue item. The
// caller still gets a success: the reply is accepted, just deferred.
func (s *ReplyService) queueRetry(ctx context.Context, review *entities.Review, text, actor string, postErr error) (*ReplyOutcome, error) {
	log.Printf("Reply post failed for review %s, queueing retry: %v", review.ID, postErr)

	now := s.now()
	errMsg := postErr.Error()
	item := &entities.ReplyQueueItem{
		ID:        uuid.New().String(),
		ReviewID:  review.ID,
		ReplyBody: text,
		Status:    entities.QueueStatusPending,
		Source:    entities.QueueSourceManualRetry,
		QueuedBy:  actor,
		LastError: &errMsg,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.queueRepo.Insert(ctx, item); err != nil {
		return nil, apperrors.NewInternalError("failed to queue reply retry", err)
	}

	return &ReplyOutcome{
		ReviewID:  review.ID,
		PostedVia: "queued",
		QueueItem: &item.ID,
		Status:    review.Status,
	}, nil
}

func (s *ReplyService) publishReplied(ctx context.Context, review *entities.Review) {
	if s.bus == nil {
		return
	}
	event := &entities.ReviewEvent{
		ID:         uuid.New().String(),
		Type:       entities.ReviewEventReplied,
		ReviewID:   review.ID,
		SourceID:   review.SourceID,
		LocationID: review.LocationID,
		OrgID:      review.OrgID,
		OccurredAt: s.now(),
	}
	if err := s.bus.Publish(ctx, providers.ReviewEventsChannel, event); err != nil {
		log.Printf("Failed to publish reply event for review %s: %v", review.ID, err)
	}
}
