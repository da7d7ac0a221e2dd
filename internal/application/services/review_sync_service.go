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
	defaultSourceBatchSize = 20
	defaultSyncPageSize    = 50
	defaultWebhookPageSize = 10
)

// SyncConfig tunes the sync coordinator.
type SyncConfig struct {
	// SourceBatchSize caps how many sources one incremental run touches.
	SourceBatchSize int
	// SyncPageSize is the page size for incremental and backfill fetches.
	SyncPageSize int
	// WebhookPageSize is the page size for webhook-triggered top-ups.
	WebhookPageSize int
}

// SourceSyncResult reports one source's outcome within a run.
type SourceSyncResult struct {
	SourceID string            `json:"source_id"`
	Platform entities.Platform `json:"platform"`
	Fetched  int               `json:"fetched"`
	New      int               `json:"new"`
	Error    string            `json:"error,omitempty"`
}

// SyncSummary aggregates a whole sync run.
type SyncSummary struct {
	Sources      []SourceSyncResult `json:"sources"`
	TotalFetched int                `json:"total_fetched"`
	TotalNew     int                `json:"total_new"`
	Autopilot    *AutopilotSummary  `json:"autopilot,omitempty"`
}

// ReviewSyncService coordinates pulling reviews from platforms into the
// store and fanning out to alerts and autopilot for novel reviews.
type ReviewSyncService struct {
	sourceRepo      repositories.ReviewSourceRepository
	integrationRepo repositories.IntegrationRepository
	reviewRepo      repositories.ReviewRepository
	platforms       PlatformResolver
	alerts          *AlertService
	autopilot       *AutopilotService
	searchIndex     providers.ReviewSearchRepository
	bus             providers.EventBus
	cfg             SyncConfig
	now             func() time.Time
}

// NewReviewSyncService creates a new review sync service
func NewReviewSyncService(
	sourceRepo repositories.ReviewSourceRepository,
	integrationRepo repositories.IntegrationRepository,
	reviewRepo repositories.ReviewRepository,
	platforms PlatformResolver,
	alerts *AlertService,
	autopilot *AutopilotService,
	searchIndex providers.ReviewSearchRepository,
	bus providers.EventBus,
	cfg SyncConfig,
) *ReviewSyncService {
	if cfg.SourceBatchSize <= 0 {
		cfg.SourceBatchSize = defaultSourceBatchSize
	}
	if cfg.SyncPageSize <= 0 {
		cfg.SyncPageSize = defaultSyncPageSize
	}
	if cfg.WebhookPageSize <= 0 {
		cfg.WebhookPageSize = defaultWebhookPageSize
	}
	return &ReviewSyncService{
		sourceRepo:      sourceRepo,
		integrationRepo: integrationRepo,
		reviewRepo:      reviewRepo,
		platforms:       platforms,
		alerts:          alerts,
		autopilot:       autopilot,
		searchIndex:     searchIndex,
		bus:             bus,
		cfg:             cfg,
		now:             time.Now,
	}
}

// SyncBatch runs one incremental pass: the stalest syncable sources,
// one page of the newest reviews each.
func (s *ReviewSyncService) SyncBatch(ctx context.Context) (*SyncSummary, error) {
	sources, err := s.sourceRepo.ListSyncable(ctx, s.cfg.SourceBatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list syncable sources: %w", err)
	}
	return s.syncSources(ctx, sources, s.cfg.SyncPageSize, false), nil
}

// Backfill pulls the complete review history for the given sources, or
// for pending (never-synced) sources when none are named.
func (s *ReviewSyncService) Backfill(ctx context.Context, sourceIDs []string, maxSources int) (*SyncSummary, error) {
	var (
		sources []*entities.ReviewSource
		err     error
	)
	if len(sourceIDs) > 0 {
		sources, err = s.sourceRepo.GetByIDs(ctx, sourceIDs)
	} else {
		sources, err = s.sourceRepo.ListPending(ctx, maxSources)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve backfill sources: %w", err)
	}
	return s.syncSources(ctx, sources, s.cfg.SyncPageSize, true), nil
}

// SyncResource tops up a single source in response to a platform push
// notification, fetching one small page of the newest reviews.
func (s *ReviewSyncService) SyncResource(ctx context.Context, platform entities.Platform, externalResourceID string) (*SyncSummary, error) {
	integration, err := s.integrationRepo.GetByExternalResource(ctx, platform, externalResourceID)
	if err != nil {
		return nil, err
	}

	source, err := s.sourceRepo.GetByID(ctx, integration.SourceID)
	if err != nil {
		return nil, err
	}

	return s.syncSources(ctx, []*entities.ReviewSource{source}, s.cfg.WebhookPageSize, false), nil
}

// syncSources walks sources strictly in order. A failing source is
// marked and skipped; it never aborts the run. Novel reviews fan out to
// alerts immediately and to autopilot once the whole run has finished,
// preserving review order.
func (s *ReviewSyncService) syncSources(ctx context.Context, sources []*entities.ReviewSource, pageSize int, allPages bool) *SyncSummary {
	summary := &SyncSummary{}
	var newReviews []*entities.Review

	for _, source := range sources {
		result := SourceSyncResult{SourceID: source.ID, Platform: source.Platform}

		fetched, novel, stats, err := s.syncSource(ctx, source, pageSize, allPages)
		result.Fetched = fetched
		result.New = len(novel)

		if err != nil {
			result.Error = err.Error()
			log.Printf("Sync failed for source %s (%s): %v", source.ID, source.Platform, err)
			if markErr := s.sourceRepo.MarkError(ctx, source.ID, err.Error(), s.now()); markErr != nil {
				log.Printf("Failed to record sync error for source %s: %v", source.ID, markErr)
			}
		} else {
			if markErr := s.sourceRepo.MarkActive(ctx, source.ID, stats, s.now()); markErr != nil {
				log.Printf("Failed to record sync success for source %s: %v", source.ID, markErr)
			}
		}

		newReviews = append(newReviews, novel...)
		summary.Sources = append(summary.Sources, result)
		summary.TotalFetched += fetched
		summary.TotalNew += len(novel)
	}

	if s.autopilot != nil && len(newReviews) > 0 {
		autopilotSummary, err := s.autopilot.Process(ctx, newReviews)
		if err != nil {
			log.Printf("Autopilot pass failed: %v", err)
		} else {
			summary.Autopilot = autopilotSummary
		}
	}

	return summary
}

// syncSource fetches pages for one source. Stats come from the
// platform's own totals on the response, never from counting local rows.
func (s *ReviewSyncService) syncSource(ctx context.Context, source *entities.ReviewSource, pageSize int, allPages bool) (int, []*entities.Review, entities.SourceStats, error) {
	var (
		fetched    int
		newReviews []*entities.Review
		stats      entities.SourceStats
	)

	platform, err := s.platforms.ForPlatform(source.Platform)
	if err != nil {
		return 0, nil, stats, err
	}

	pageToken := ""
	for {
		page, err := platform.FetchReviews(ctx, source.ResourceHandle, providers.FetchOptions{
			PageSize:  pageSize,
			PageToken: pageToken,
			OrderBy:   "updateTime desc",
		})
		if err != nil {
			return fetched, newReviews, stats, err
		}

		stats = entities.SourceStats{
			TotalReviewCount: page.TotalReviewCount,
			AverageRating:    page.AverageRating,
		}

		for _, pr := range page.Reviews {
			fetched++

			review := NormalizeReview(source, pr, s.now())
			result, err := s.reviewRepo.Upsert(ctx, review)
			if err != nil {
				return fetched, newReviews, stats, err
			}
			if !result.New() {
				continue
			}

			newReviews = append(newReviews, review)
			s.fanOut(ctx, review)
		}

		pageToken = page.NextPageToken
		if !allPages || pageToken == "" {
			break
		}
	}

	return fetched, newReviews, stats, nil
}

// fanOut handles the per-review side effects of novelty: search
// indexing, alert evaluation, and the synced event. All best effort.
func (s *ReviewSyncService) fanOut(ctx context.Context, review *entities.Review) {
	if s.searchIndex != nil {
		if err := s.searchIndex.Index(ctx, review); err != nil {
			log.Printf("Failed to index review %s: %v", review.ID, err)
		}
	}

	if s.alerts != nil {
		if _, err := s.alerts.Evaluate(ctx, review); err != nil {
			log.Printf("Alert evaluation failed for review %s: %v", review.ID, err)
		}
	}

	if s.bus != nil {
		event := &entities.ReviewEvent{
			ID:         uuid.New().String(),
			Type:       entities.ReviewEventSynced,
			ReviewID:   review.ID,
			SourceID:   review.SourceID,
			LocationID: review.LocationID,
			OrgID:      review.OrgID,
			OccurredAt: s.now(),
		}
		if err := s.bus.Publish(ctx, providers.ReviewEventsChannel, event); err != nil {
			log.Printf("Failed to publish synced event for review %s: %v", review.ID, err)
		}
	}
}
