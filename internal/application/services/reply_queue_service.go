package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/garrettjsmith/localpresence/internal/domain/entities"
	"github.com/garrettjsmith/localpresence/internal/domain/providers"
	"github.com/garrettjsmith/localpresence/internal/domain/repositories"
)

const (
	defaultQueueBatchSize = 50
	defaultMaxAttempts    = 8
	backoffBase           = time.Minute
	backoffCap            = 6 * time.Hour
)

// QueueRunSummary reports what one queue pass did.
type QueueRunSummary struct {
	Processed   int `json:"processed"`
	Sent        int `json:"sent"`
	Rescheduled int `json:"rescheduled"`
	Failed      int `json:"failed"`
}

// ReplyQueueService drains due reply queue items, posting each reply to
// its platform and rescheduling transient failures with backoff.
type ReplyQueueService struct {
	queueRepo   repositories.ReplyQueueRepository
	reviewRepo  repositories.ReviewRepository
	platforms   PlatformResolver
	bus         providers.EventBus
	maxAttempts int
	batchSize   int
	now         func() time.Time
}

// NewReplyQueueService creates a new reply queue service
func NewReplyQueueService(
	queueRepo repositories.ReplyQueueRepository,
	reviewRepo repositories.ReviewRepository,
	platforms PlatformResolver,
	bus providers.EventBus,
	maxAttempts int,
) *ReplyQueueService {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &ReplyQueueService{
		queueRepo:   queueRepo,
		reviewRepo:  reviewRepo,
		platforms:   platforms,
		bus:         bus,
		maxAttempts: maxAttempts,
		batchSize:   defaultQueueBatchSize,
		now:         time.Now,
	}
}

// ProcessDue dispatches every pending item whose not-before time has
// passed. Each item is isolated: one bad item never stalls the rest.
func (s *ReplyQueueService) ProcessDue(ctx context.Context) (*QueueRunSummary, error) {
	now := s.now()
	items, err := s.queueRepo.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list due queue items: %w", err)
	}

	summary := &QueueRunSummary{}
	for _, item := range items {
		summary.Processed++
		switch s.dispatch(ctx, item) {
		case dispatchSent:
			summary.Sent++
		case dispatchRescheduled:
			summary.Rescheduled++
		case dispatchFailed:
			summary.Failed++
		}
	}

	return summary, nil
}

type dispatchResult int

const (
	dispatchSent dispatchResult = iota
	dispatchRescheduled
	dispatchFailed
)

func (s *ReplyQueueService) dispatch(ctx context.Context, item *entities.ReplyQueueItem) dispatchResult {
	review, err := s.reviewRepo.GetByID(ctx, item.ReviewID)
	if err != nil {
		return s.recordFailure(ctx, item, fmt.Errorf("failed to load review: %w", err))
	}

	platform, err := s.platforms.ForPlatform(review.Platform)
	if err != nil {
		return s.recordFailure(ctx, item, err)
	}
	if !platform.SupportsReplies() {
		// The platform will never accept this; no point retrying.
		return s.terminate(ctx, item, "platform does not support api replies")
	}

	handle := review.ReplyResource()
	if handle == "" {
		return s.terminate(ctx, item, "review has no reply handle")
	}

	if err := platform.PostReply(ctx, handle, item.ReplyBody); err != nil {
		return s.recordFailure(ctx, item, err)
	}

	now := s.now()
	if err := s.reviewRepo.SetReply(ctx, review.ID, repositories.ReviewReply{
		Body:        item.ReplyBody,
		PublishedAt: now,
		RepliedBy:   item.QueuedBy,
		RepliedVia:  entities.RepliedViaAPI,
	}); err != nil {
		log.Printf("Queue item %s posted but review update failed: %v", item.ID, err)
	}

	if err := s.queueRepo.MarkSent(ctx, item.ID, now); err != nil {
		log.Printf("Failed to mark queue item %s sent: %v", item.ID, err)
	}

	s.publishReplied(ctx, review)
	return dispatchSent
}

// recordFailure bumps the attempt counter and either reschedules with
// exponential backoff or, past the attempt budget, fails the item
// terminally.
func (s *ReplyQueueService) recordFailure(ctx context.Context, item *entities.ReplyQueueItem, cause error) dispatchResult {
	attempts := item.Attempts + 1
	if attempts >= s.maxAttempts {
		return s.terminate(ctx, item, cause.Error())
	}

	nextAt := s.now().Add(backoffDelay(attempts))
	if err := s.queueRepo.Reschedule(ctx, item.ID, attempts, nextAt, cause.Error()); err != nil {
		log.Printf("Failed to reschedule queue item %s: %v", item.ID, err)
		return dispatchFailed
	}

	log.Printf("Queue item %s attempt %d failed, next try at %s: %v", item.ID, attempts, nextAt.Format(time.RFC3339), cause)
	return dispatchRescheduled
}

func (s *ReplyQueueService) terminate(ctx context.Context, item *entities.ReplyQueueItem, reason string) dispatchResult {
	if err := s.queueRepo.MarkFailed(ctx, item.ID, reason); err != nil {
		log.Printf("Failed to mark queue item %s failed: %v", item.ID, err)
	}
	log.Printf("Queue item %s failed terminally: %s", item.ID, reason)
	return dispatchFailed
}

func backoffDelay(attempts int) time.Duration {
	delay := backoffBase * time.Duration(1<<uint(attempts))
	if delay > backoffCap {
		return backoffCap
	}
	return delay
}

func (s *ReplyQueueService) publishReplied(ctx context.Context, review *entities.Review) {
	if s.bus == nil {
		return
	}
	event := entities.ReviewEvent{
		ID:         uuid.New().String(),
		Type:       entities.ReviewEventReplied,
		ReviewID:   review.ID,
		SourceID:   review.SourceID,
		LocationID: review.LocationID,
		OrgID:      review.OrgID,
		OccurredAt: s.now(),
	}
	if err := s.bus.Publish(ctx, providers.ReviewEventsChannel, &event); err != nil {
		log.Printf("Failed to publish reply event for review %s: %v", review.ID, err)
	}
}
