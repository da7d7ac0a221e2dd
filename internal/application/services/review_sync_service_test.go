package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garrettjsmith/localpresence/internal/domain/entities"
	"github.com/garrettjsmith/localpresence/internal/domain/providers"
	"github.com/garrettjsmith/localpresence/internal/domain/repositories"
	apperrors "github.com/garrettjsmith/localpresence/pkg/errors"
)

type syncFixture struct {
	svc         *ReviewSyncService
	sourceRepo  *fakeSourceRepo
	reviewRepo  *fakeReviewRepo
	queueRepo   *fakeQueueRepo
	platform    *fakePlatform
	sender      *fakeEmailSender
	generator   *fakeGenerator
	bus         *fakeBus
	searchIndex *fakeSearchIndex
	now         time.Time
}

func newSyncFixture(t *testing.T, sources ...*entities.ReviewSource) *syncFixture {
	t.Helper()

	sourceRepo := newFakeSourceRepo(sources...)
	reviewRepo := newFakeReviewRepo()
	queueRepo := &fakeQueueRepo{}
	platform := newFakePlatform()
	sender := &fakeEmailSender{}
	generator := &fakeGenerator{draft: "Thank you!"}
	bus := &fakeBus{}
	searchIndex := &fakeSearchIndex{}

	locations := &fakeLocationRepo{locations: map[string]*entities.Location{
		"loc-1": {ID: "loc-1", OrgID: "org-1", BusinessName: "Riverside Diner"},
	}}

	alerts := NewAlertService(
		&fakeRuleRepo{rules: []*entities.AlertRule{{
			ID: "rule-1", OrgID: "org-1", RuleType: entities.AlertRuleNegativeReview,
			NotifyEmails: []string{"owner@example.com"}, Active: true,
		}}},
		locations,
		sender,
	)

	autopilot := NewAutopilotService(
		&fakeConfigRepo{configs: map[string]*entities.AutopilotConfig{
			"loc-1": {LocationID: "loc-1", Enabled: true, DelayMinMinutes: 5, DelayMaxMinutes: 10},
		}},
		locations,
		reviewRepo,
		queueRepo,
		generator,
		0,
	)

	resolver := &fakeResolver{platform: platform}
	svc := NewReviewSyncService(
		sourceRepo,
		&fakeIntegrationRepo{integrations: map[string]*entities.PlatformIntegration{
			"google|locations/ext-1": {ID: "int-1", SourceID: "src-1", Platform: entities.PlatformGoogle, ExternalResourceID: "locations/ext-1"},
		}},
		reviewRepo,
		resolver,
		alerts,
		autopilot,
		searchIndex,
		bus,
		SyncConfig{SourceBatchSize: 20, SyncPageSize: 50, WebhookPageSize: 10},
	)

	now := time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	autopilot.now = svc.now

	return &syncFixture{
		svc:         svc,
		sourceRepo:  sourceRepo,
		reviewRepo:  reviewRepo,
		queueRepo:   queueRepo,
		platform:    platform,
		sender:      sender,
		generator:   generator,
		bus:         bus,
		searchIndex: searchIndex,
		now:         now,
	}
}

func syncTestSource(id, handle string) *entities.ReviewSource {
	return &entities.ReviewSource{
		ID:             id,
		LocationID:     "loc-1",
		OrgID:          "org-1",
		Platform:       entities.PlatformGoogle,
		ResourceHandle: handle,
		SyncStatus:     entities.SyncStatusPending,
	}
}

func platformPage(total int, avg float64, reviews ...providers.PlatformReview) *providers.ReviewPage {
	return &providers.ReviewPage{
		Reviews:          reviews,
		TotalReviewCount: total,
		AverageRating:    avg,
	}
}

func platformReview(id string, rating int, body string) providers.PlatformReview {
	return providers.PlatformReview{
		ID:            id,
		ReviewerName:  "Pat",
		Rating:        intPtr(rating),
		Comment:       body,
		CreateTime:    time.Date(2026, 3, 9, 18, 0, 0, 0, time.UTC),
		ReplyResource: "resource/" + id,
	}
}

func TestReviewSyncService_SyncBatch(t *testing.T) {
	t.Run("syncs one page per source and records platform stats", func(t *testing.T) {
		f := newSyncFixture(t, syncTestSource("src-1", "handle-1"))
		f.platform.seed("handle-1",
			platformPage(321, 4.6,
				platformReview("r-1", 5, "Loved it"),
				platformReview("r-2", 4, "Solid"),
			),
			platformPage(321, 4.6, platformReview("r-3", 3, "meh")),
		)

		summary, err := f.svc.SyncBatch(context.Background())
		require.NoError(t, err)

		// Incremental mode fetches only the first page.
		assert.Equal(t, 2, summary.TotalFetched)
		assert.Equal(t, 2, summary.TotalNew)
		assert.Equal(t, 1, f.platform.fetchCalls)

		// Stats come from the platform totals, not the two local rows.
		source, _ := f.sourceRepo.GetByID(context.Background(), "src-1")
		assert.Equal(t, entities.SyncStatusActive, source.SyncStatus)
		assert.Equal(t, 321, source.TotalReviewCount)
		assert.Equal(t, 4.6, source.AverageRating)
		require.NotNil(t, source.LastSyncedAt)
	})

	t.Run("re-syncing the same page creates nothing new", func(t *testing.T) {
		f := newSyncFixture(t, syncTestSource("src-1", "handle-1"))
		f.platform.seed("handle-1", platformPage(1, 5, platformReview("r-1", 5, "Loved it")))

		first, err := f.svc.SyncBatch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, first.TotalNew)

		second, err := f.svc.SyncBatch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, second.TotalFetched)
		assert.Equal(t, 0, second.TotalNew, "unchanged review must not fan out again")

		// Fan-out ran once: one alert evaluation pass, one index write.
		assert.Len(t, f.searchIndex.indexed, 1)
		assert.Len(t, f.bus.events, 1)
	})

	t.Run("edited review fans out again", func(t *testing.T) {
		f := newSyncFixture(t, syncTestSource("src-1", "handle-1"))
		f.platform.seed("handle-1", platformPage(1, 5, platformReview("r-1", 5, "Loved it")))

		_, err := f.svc.SyncBatch(context.Background())
		require.NoError(t, err)

		edited := platformReview("r-1", 1, "Changed my mind")
		f.platform.seed("handle-1", platformPage(1, 1, edited))

		summary, err := f.svc.SyncBatch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, summary.TotalNew)

		// The downgraded rating now trips the negative-review rule.
		require.Len(t, f.sender.sent, 1)
	})

	t.Run("a failing source is isolated and marked", func(t *testing.T) {
		f := newSyncFixture(t,
			syncTestSource("src-bad", "handle-bad"),
			syncTestSource("src-good", "handle-good"),
		)
		f.platform.fetchErr["handle-bad"] = apperrors.NewExternalError("token expired", nil)
		f.platform.seed("handle-good", platformPage(1, 5, platformReview("r-1", 5, "Fine")))

		summary, err := f.svc.SyncBatch(context.Background())
		require.NoError(t, err)

		require.Len(t, summary.Sources, 2)
		assert.Contains(t, summary.Sources[0].Error, "token expired")
		assert.Empty(t, summary.Sources[1].Error)
		assert.Equal(t, 1, summary.Sources[1].New)

		bad, _ := f.sourceRepo.GetByID(context.Background(), "src-bad")
		assert.Equal(t, entities.SyncStatusError, bad.SyncStatus)
		assert.Contains(t, f.sourceRepo.errors["src-bad"], "token expired")

		good, _ := f.sourceRepo.GetByID(context.Background(), "src-good")
		assert.Equal(t, entities.SyncStatusActive, good.SyncStatus)
	})

	t.Run("negative reviews trigger alerts and skip autopilot", func(t *testing.T) {
		f := newSyncFixture(t, syncTestSource("src-1", "handle-1"))
		f.platform.seed("handle-1", platformPage(2, 3,
			platformReview("r-neg", 1, "Horrible"),
			platformReview("r-pos", 5, "Wonderful"),
		))

		summary, err := f.svc.SyncBatch(context.Background())
		require.NoError(t, err)

		require.Len(t, f.sender.sent, 1, "only the 1-star review should alert")
		require.NotNil(t, summary.Autopilot)
		assert.Equal(t, 1, summary.Autopilot.Drafted, "only the 5-star review is draft-eligible")

		// Unattended sending: the draft is scheduled with a not-before time.
		require.Len(t, f.queueRepo.items, 1)
		item := f.queueRepo.items[0]
		require.NotNil(t, item.ScheduledFor)
		assert.True(t, item.ScheduledFor.After(f.now), "scheduled_for must be in the future")
	})

	t.Run("an answered review edited later is not drafted again", func(t *testing.T) {
		f := newSyncFixture(t, syncTestSource("src-1", "handle-1"))
		f.platform.seed("handle-1", platformPage(1, 5, platformReview("r-1", 5, "Loved it")))

		_, err := f.svc.SyncBatch(context.Background())
		require.NoError(t, err)
		require.Len(t, f.queueRepo.items, 1)
		assert.Equal(t, 1, f.generator.calls)

		// The worker delivers the scheduled reply.
		item := f.queueRepo.items[0]
		require.NoError(t, f.queueRepo.MarkSent(context.Background(), item.ID, f.now))
		require.NoError(t, f.reviewRepo.SetReply(context.Background(), item.ReviewID, repositories.ReviewReply{
			Body:        item.ReplyBody,
			PublishedAt: f.now,
			RepliedBy:   "autopilot",
			RepliedVia:  entities.RepliedViaAPI,
		}))
		require.True(t, f.reviewRepo.get(item.ReviewID).HasReply())

		// The customer edits the review afterwards.
		f.platform.seed("handle-1", platformPage(1, 5, platformReview("r-1", 5, "Loved it, still do")))

		summary, err := f.svc.SyncBatch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, summary.TotalNew, "the edit itself still fans out")

		assert.Equal(t, 1, f.generator.calls, "no second draft for an answered review")
		pending, err := f.queueRepo.HasPendingAutopilot(context.Background(), item.ReviewID)
		require.NoError(t, err)
		assert.False(t, pending, "an answered review must not be rescheduled")
	})

	t.Run("a review answered on the platform arrives responded and skips autopilot", func(t *testing.T) {
		f := newSyncFixture(t, syncTestSource("src-1", "handle-1"))
		answered := platformReview("r-1", 5, "Great spot")
		answered.ReplyComment = "Thanks for stopping by!"
		repliedAt := f.now.Add(-2 * time.Hour)
		answered.ReplyUpdateTime = &repliedAt
		f.platform.seed("handle-1", platformPage(1, 5, answered))

		summary, err := f.svc.SyncBatch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, summary.TotalNew)

		require.Len(t, f.reviewRepo.byID, 1)
		for _, stored := range f.reviewRepo.byID {
			require.True(t, stored.HasReply())
			assert.Equal(t, entities.ReviewStatusResponded, stored.Status)
			require.NotNil(t, stored.RepliedVia)
			assert.Equal(t, entities.RepliedViaManual, *stored.RepliedVia)
		}

		assert.Equal(t, 0, f.generator.calls)
		assert.Empty(t, f.queueRepo.items)
	})
}

func TestReviewSyncService_Backfill(t *testing.T) {
	t.Run("walks every page to completion", func(t *testing.T) {
		f := newSyncFixture(t, syncTestSource("src-1", "handle-1"))

		var pages []*providers.ReviewPage
		total := 0
		for p := 0; p < 3; p++ {
			var revs []providers.PlatformReview
			for i := 0; i < 4; i++ {
				total++
				revs = append(revs, platformReview(fmt.Sprintf("r-%d-%d", p, i), 4, "Good"))
			}
			pages = append(pages, platformPage(12, 4.0, revs...))
		}
		f.platform.seed("handle-1", pages...)

		summary, err := f.svc.Backfill(context.Background(), []string{"src-1"}, 0)
		require.NoError(t, err)

		assert.Equal(t, 12, summary.TotalFetched)
		assert.Equal(t, 12, summary.TotalNew)
		assert.Equal(t, 3, f.platform.fetchCalls)
	})

	t.Run("defaults to pending sources when none are named", func(t *testing.T) {
		pending := syncTestSource("src-pending", "handle-pending")
		synced := syncTestSource("src-synced", "handle-synced")
		synced.SyncStatus = entities.SyncStatusActive

		f := newSyncFixture(t, pending, synced)
		f.platform.seed("handle-pending", platformPage(1, 5, platformReview("r-1", 5, "New")))

		summary, err := f.svc.Backfill(context.Background(), nil, 10)
		require.NoError(t, err)

		require.Len(t, summary.Sources, 1)
		assert.Equal(t, "src-pending", summary.Sources[0].SourceID)
	})
}

func TestReviewSyncService_SyncResource(t *testing.T) {
	t.Run("resolves the integration and tops up one source", func(t *testing.T) {
		f := newSyncFixture(t, syncTestSource("src-1", "handle-1"))
		f.platform.seed("handle-1", platformPage(1, 5, platformReview("r-1", 5, "Push!")))

		summary, err := f.svc.SyncResource(context.Background(), entities.PlatformGoogle, "locations/ext-1")
		require.NoError(t, err)

		require.Len(t, summary.Sources, 1)
		assert.Equal(t, "src-1", summary.Sources[0].SourceID)
		assert.Equal(t, 1, summary.TotalNew)
	})

	t.Run("unknown resources are a not found error", func(t *testing.T) {
		f := newSyncFixture(t, syncTestSource("src-1", "handle-1"))

		_, err := f.svc.SyncResource(context.Background(), entities.PlatformGoogle, "locations/unknown")
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	})
}
