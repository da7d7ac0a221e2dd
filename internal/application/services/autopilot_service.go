package services

import (
	"context"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/garrettjsmith/localpresence/internal/domain/entities"
	"github.com/garrettjsmith/localpresence/internal/domain/providers"
	"github.com/garrettjsmith/localpresence/internal/domain/repositories"
	apperrors "github.com/garrettjsmith/localpresence/pkg/errors"
)

const (
	defaultDraftCap   = 10
	defaultDelayMin   = 5
	defaultDelayMax   = 60
	autopilotQueuedBy = "autopilot"
)

// AutopilotSummary reports what one autopilot pass did.
type AutopilotSummary struct {
	Considered int `json:"considered"`
	Drafted    int `json:"drafted"`
	Scheduled  int `json:"scheduled"`
	Skipped    int `json:"skipped"`
}

// AutopilotService drafts AI replies for eligible reviews and, when a
// location allows unattended sending, schedules them on the reply queue
// with a randomized not-before time.
type AutopilotService struct {
	configRepo   repositories.AutopilotConfigRepository
	locationRepo repositories.LocationRepository
	reviewRepo   repositories.ReviewRepository
	queueRepo    repositories.ReplyQueueRepository
	generator    providers.ReplyGenerator
	draftCap     int
	now          func() time.Time
	rng          *rand.Rand
}

// NewAutopilotService creates a new autopilot service
func NewAutopilotService(
	configRepo repositories.AutopilotConfigRepository,
	locationRepo repositories.LocationRepository,
	reviewRepo repositories.ReviewRepository,
	queueRepo repositories.ReplyQueueRepository,
	generator providers.ReplyGenerator,
	draftCap int,
) *AutopilotService {
	if draftCap <= 0 {
		draftCap = defaultDraftCap
	}
	return &AutopilotService{
		configRepo:   configRepo,
		locationRepo: locationRepo,
		reviewRepo:   reviewRepo,
		queueRepo:    queueRepo,
		generator:    generator,
		draftCap:     draftCap,
		now:          time.Now,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Process drafts replies for the given reviews in order, stopping at the
// per-run cap. Reviews are skipped when their location has no enabled
// config, the rating is ineligible, a draft or reply already exists, or
// an unresolved autopilot queue item is pending.
func (s *AutopilotService) Process(ctx context.Context, reviews []*entities.Review) (*AutopilotSummary, error) {
	summary := &AutopilotSummary{}
	locations := map[string]*entities.Location{}

	for _, review := range reviews {
		if summary.Drafted >= s.draftCap {
			break
		}
		summary.Considered++

		cfg, err := s.configRepo.GetByLocation(ctx, review.LocationID)
		if err != nil {
			if !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
				log.Printf("Autopilot: failed to load config for location %s: %v", review.LocationID, err)
			}
			summary.Skipped++
			continue
		}

		eligible, err := s.eligible(ctx, cfg, review)
		if err != nil {
			log.Printf("Autopilot: eligibility check failed for review %s: %v", review.ID, err)
			summary.Skipped++
			continue
		}
		if !eligible {
			summary.Skipped++
			continue
		}

		location, ok := locations[review.LocationID]
		if !ok {
			location, err = s.locationRepo.GetByID(ctx, review.LocationID)
			if err != nil {
				log.Printf("Autopilot: failed to load location %s: %v", review.LocationID, err)
				summary.Skipped++
				continue
			}
			locations[review.LocationID] = location
		}

		draft, err := s.generator.GenerateReply(ctx, providers.ReplyContext{
			BusinessName:    location.BusinessName,
			Tone:            cfg.Tone,
			BusinessContext: cfg.BusinessContext,
			ReviewerName:    review.ReviewerName,
			Rating:          review.Rating,
			ReviewBody:      review.Body,
		})
		if err != nil {
			log.Printf("Autopilot: draft generation failed for review %s: %v", review.ID, err)
			summary.Skipped++
			continue
		}

		now := s.now()
		if err := s.reviewRepo.SetAIDraft(ctx, review.ID, draft, now); err != nil {
			log.Printf("Autopilot: failed to store draft for review %s: %v", review.ID, err)
			summary.Skipped++
			continue
		}
		summary.Drafted++

		if cfg.RequireApproval {
			continue
		}

		scheduledFor := now.Add(s.randomDelay(cfg))
		item := &entities.ReplyQueueItem{
			ID:           uuid.New().String(),
			ReviewID:     review.ID,
			ReplyBody:    draft,
			Status:       entities.QueueStatusPending,
			Source:       entities.QueueSourceAIAutopilot,
			ScheduledFor: &scheduledFor,
			QueuedBy:     autopilotQueuedBy,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.queueRepo.Insert(ctx, item); err != nil {
			log.Printf("Autopilot: failed to schedule reply for review %s: %v", review.ID, err)
			continue
		}
		summary.Scheduled++
	}

	return summary, nil
}

func (s *AutopilotService) eligible(ctx context.Context, cfg *entities.AutopilotConfig, review *entities.Review) (bool, error) {
	if !cfg.Enabled || !cfg.AllowsRating(review.Rating) {
		return false, nil
	}

	// The synced copy never carries reply or draft state, so those are
	// judged against the stored row. An edited review that was already
	// answered must not be drafted a second time.
	stored, err := s.reviewRepo.GetByID(ctx, review.ID)
	if err != nil {
		return false, err
	}
	if stored.HasReply() || stored.AIDraft != nil {
		return false, nil
	}
	if stored.Status == entities.ReviewStatusResponded || stored.Status == entities.ReviewStatusArchived {
		return false, nil
	}

	pending, err := s.queueRepo.HasPendingAutopilot(ctx, review.ID)
	if err != nil {
		return false, err
	}
	return !pending, nil
}

// randomDelay picks a uniform delay inside the location's configured
// window so autopilot replies do not land in a burst.
func (s *AutopilotService) randomDelay(cfg *entities.AutopilotConfig) time.Duration {
	min, max := cfg.DelayMinMinutes, cfg.DelayMaxMinutes
	if min <= 0 {
		min = defaultDelayMin
	}
	if max < min {
		max = defaultDelayMax
		if max < min {
			max = min
		}
	}
	minutes := min
	if max > min {
		minutes = min + s.rng.Intn(max-min+1)
	}
	return time.Duration(minutes) * time.Minute
}
