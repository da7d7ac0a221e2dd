package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garrettjsmith/localpresence/internal/domain/entities"
)

type autopilotFixture struct {
	svc        *AutopilotService
	reviewRepo *fakeReviewRepo
	queueRepo  *fakeQueueRepo
	generator  *fakeGenerator
	now        time.Time
}

func newAutopilotFixture(t *testing.T, cfg *entities.AutopilotConfig) *autopilotFixture {
	t.Helper()

	configs := map[string]*entities.AutopilotConfig{}
	if cfg != nil {
		configs[cfg.LocationID] = cfg
	}

	reviewRepo := newFakeReviewRepo()
	queueRepo := &fakeQueueRepo{}
	generator := &fakeGenerator{draft: "Thanks for visiting!"}

	svc := NewAutopilotService(
		&fakeConfigRepo{configs: configs},
		&fakeLocationRepo{locations: map[string]*entities.Location{
			"loc-1": {ID: "loc-1", OrgID: "org-1", BusinessName: "Riverside Diner"},
		}},
		reviewRepo,
		queueRepo,
		generator,
		0,
	)

	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	return &autopilotFixture{
		svc:        svc,
		reviewRepo: reviewRepo,
		queueRepo:  queueRepo,
		generator:  generator,
		now:        now,
	}
}

func autopilotReview(id string, rating int) *entities.Review {
	return &entities.Review{
		ID:           id,
		SourceID:     "src-1",
		LocationID:   "loc-1",
		OrgID:        "org-1",
		Platform:     entities.PlatformGoogle,
		ReviewerName: "Alex",
		Rating:       intPtr(rating),
		Body:         "Nice place",
		Status:       entities.ReviewStatusNew,
	}
}

func TestAutopilotService_Process(t *testing.T) {
	t.Run("drafts for eligible ratings only", func(t *testing.T) {
		f := newAutopilotFixture(t, &entities.AutopilotConfig{
			LocationID: "loc-1", Enabled: true, RequireApproval: true,
		})

		reviews := []*entities.Review{
			autopilotReview("rev-5", 5),
			autopilotReview("rev-3", 3),
			autopilotReview("rev-4", 4),
		}
		for _, r := range reviews {
			f.reviewRepo.add(r)
		}

		summary, err := f.svc.Process(context.Background(), reviews)
		require.NoError(t, err)

		// Default eligible ratings are {4, 5}.
		assert.Equal(t, 2, summary.Drafted)
		assert.Equal(t, 1, summary.Skipped)
		assert.NotNil(t, f.reviewRepo.get("rev-5").AIDraft)
		assert.Nil(t, f.reviewRepo.get("rev-3").AIDraft)
	})

	t.Run("require_approval drafts without scheduling", func(t *testing.T) {
		f := newAutopilotFixture(t, &entities.AutopilotConfig{
			LocationID: "loc-1", Enabled: true, RequireApproval: true,
		})
		review := autopilotReview("rev-1", 5)
		f.reviewRepo.add(review)

		summary, err := f.svc.Process(context.Background(), []*entities.Review{review})
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Drafted)
		assert.Equal(t, 0, summary.Scheduled)
		assert.Empty(t, f.queueRepo.items)
	})

	t.Run("schedules inside the configured delay window", func(t *testing.T) {
		f := newAutopilotFixture(t, &entities.AutopilotConfig{
			LocationID: "loc-1", Enabled: true,
			DelayMinMinutes: 10, DelayMaxMinutes: 30,
		})
		review := autopilotReview("rev-1", 5)
		f.reviewRepo.add(review)

		summary, err := f.svc.Process(context.Background(), []*entities.Review{review})
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Scheduled)
		require.Len(t, f.queueRepo.items, 1)

		item := f.queueRepo.items[0]
		assert.Equal(t, entities.QueueSourceAIAutopilot, item.Source)
		assert.Equal(t, entities.QueueStatusPending, item.Status)
		require.NotNil(t, item.ScheduledFor)

		earliest := f.now.Add(10 * time.Minute)
		latest := f.now.Add(30 * time.Minute)
		assert.False(t, item.ScheduledFor.Before(earliest), "scheduled before the window: %s", item.ScheduledFor)
		assert.False(t, item.ScheduledFor.After(latest), "scheduled after the window: %s", item.ScheduledFor)
	})

	t.Run("skips reviews whose stored row has a draft or reply", func(t *testing.T) {
		f := newAutopilotFixture(t, &entities.AutopilotConfig{
			LocationID: "loc-1", Enabled: true, RequireApproval: true,
		})

		drafted := autopilotReview("rev-drafted", 5)
		draft := "already drafted"
		drafted.AIDraft = &draft
		f.reviewRepo.add(drafted)

		replied := autopilotReview("rev-replied", 5)
		reply := "already replied"
		replied.ReplyBody = &reply
		replied.Status = entities.ReviewStatusResponded
		f.reviewRepo.add(replied)

		// The synced copies carry no reply or draft state; only the store
		// knows these reviews are already handled.
		summary, err := f.svc.Process(context.Background(), []*entities.Review{
			autopilotReview("rev-drafted", 5),
			autopilotReview("rev-replied", 5),
		})
		require.NoError(t, err)
		assert.Equal(t, 0, summary.Drafted)
		assert.Equal(t, 2, summary.Skipped)
		assert.Equal(t, 0, f.generator.calls)
	})

	t.Run("skips responded and archived reviews", func(t *testing.T) {
		f := newAutopilotFixture(t, &entities.AutopilotConfig{
			LocationID: "loc-1", Enabled: true, RequireApproval: true,
		})

		archived := autopilotReview("rev-archived", 5)
		archived.Status = entities.ReviewStatusArchived
		f.reviewRepo.add(archived)

		summary, err := f.svc.Process(context.Background(), []*entities.Review{
			autopilotReview("rev-archived", 5),
		})
		require.NoError(t, err)
		assert.Equal(t, 0, summary.Drafted)
		assert.Equal(t, 1, summary.Skipped)
	})

	t.Run("skips reviews with a pending autopilot item", func(t *testing.T) {
		f := newAutopilotFixture(t, &entities.AutopilotConfig{
			LocationID: "loc-1", Enabled: true,
		})
		review := autopilotReview("rev-1", 5)
		f.reviewRepo.add(review)
		f.queueRepo.items = append(f.queueRepo.items, &entities.ReplyQueueItem{
			ID: "item-1", ReviewID: "rev-1",
			Source: entities.QueueSourceAIAutopilot, Status: entities.QueueStatusPending,
		})

		summary, err := f.svc.Process(context.Background(), []*entities.Review{review})
		require.NoError(t, err)
		assert.Equal(t, 0, summary.Drafted)
		assert.Equal(t, 0, f.generator.calls)
	})

	t.Run("disabled or missing config skips", func(t *testing.T) {
		f := newAutopilotFixture(t, &entities.AutopilotConfig{
			LocationID: "loc-1", Enabled: false,
		})
		review := autopilotReview("rev-1", 5)
		f.reviewRepo.add(review)

		other := autopilotReview("rev-2", 5)
		other.LocationID = "loc-unconfigured"
		f.reviewRepo.add(other)

		summary, err := f.svc.Process(context.Background(), []*entities.Review{review, other})
		require.NoError(t, err)
		assert.Equal(t, 0, summary.Drafted)
		assert.Equal(t, 2, summary.Skipped)
	})

	t.Run("stops at the per-run cap", func(t *testing.T) {
		f := newAutopilotFixture(t, &entities.AutopilotConfig{
			LocationID: "loc-1", Enabled: true, RequireApproval: true,
		})

		var reviews []*entities.Review
		for i := 0; i < 15; i++ {
			review := autopilotReview(fmt.Sprintf("rev-%d", i), 5)
			reviews = append(reviews, review)
			f.reviewRepo.add(review)
		}

		summary, err := f.svc.Process(context.Background(), reviews)
		require.NoError(t, err)
		assert.Equal(t, 10, summary.Drafted)
		assert.Equal(t, 10, f.generator.calls)
	})
}
