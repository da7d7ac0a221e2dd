package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garrettjsmith/localpresence/internal/domain/entities"
	apperrors "github.com/garrettjsmith/localpresence/pkg/errors"
)

type queueFixture struct {
	svc        *ReplyQueueService
	reviewRepo *fakeReviewRepo
	queueRepo  *fakeQueueRepo
	platform   *fakePlatform
	now        time.Time
}

func newQueueFixture(t *testing.T) *queueFixture {
	t.Helper()

	reviewRepo := newFakeReviewRepo()
	queueRepo := &fakeQueueRepo{}
	platform := newFakePlatform()

	svc := NewReplyQueueService(queueRepo, reviewRepo, &fakeResolver{platform: platform}, &fakeBus{}, 3)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	return &queueFixture{svc: svc, reviewRepo: reviewRepo, queueRepo: queueRepo, platform: platform, now: now}
}

func (f *queueFixture) addItem(id, reviewID string, attempts int, scheduledFor *time.Time) {
	f.queueRepo.items = append(f.queueRepo.items, &entities.ReplyQueueItem{
		ID:           id,
		ReviewID:     reviewID,
		ReplyBody:    "Queued reply",
		Status:       entities.QueueStatusPending,
		Source:       entities.QueueSourceManualRetry,
		ScheduledFor: scheduledFor,
		QueuedBy:     "user-7",
		Attempts:     attempts,
	})
}

func TestReplyQueueService_ProcessDue(t *testing.T) {
	t.Run("dispatches due items and updates the review", func(t *testing.T) {
		f := newQueueFixture(t)
		f.reviewRepo.add(replyTestReview("rev-1", true))
		f.addItem("item-1", "rev-1", 0, nil)

		summary, err := f.svc.ProcessDue(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 1, summary.Processed)
		assert.Equal(t, 1, summary.Sent)
		assert.Equal(t, entities.QueueStatusSent, f.queueRepo.get("item-1").Status)

		stored := f.reviewRepo.get("rev-1")
		require.NotNil(t, stored.ReplyBody)
		assert.Equal(t, "Queued reply", *stored.ReplyBody)
		require.NotNil(t, stored.RepliedVia)
		assert.Equal(t, entities.RepliedViaAPI, *stored.RepliedVia)
	})

	t.Run("skips items scheduled in the future", func(t *testing.T) {
		f := newQueueFixture(t)
		f.reviewRepo.add(replyTestReview("rev-1", true))
		later := f.now.Add(time.Hour)
		f.addItem("item-1", "rev-1", 0, &later)

		summary, err := f.svc.ProcessDue(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, summary.Processed)
		assert.Equal(t, 0, f.platform.replyCalls)
	})

	t.Run("failure reschedules with backoff and attempt counter", func(t *testing.T) {
		f := newQueueFixture(t)
		f.reviewRepo.add(replyTestReview("rev-1", true))
		f.addItem("item-1", "rev-1", 0, nil)
		f.platform.replyErr = apperrors.NewExternalError("still rate limited", nil)

		summary, err := f.svc.ProcessDue(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Rescheduled)

		item := f.queueRepo.get("item-1")
		assert.Equal(t, entities.QueueStatusPending, item.Status)
		assert.Equal(t, 1, item.Attempts)
		require.NotNil(t, item.ScheduledFor)
		assert.Equal(t, f.now.Add(2*time.Minute), *item.ScheduledFor)
		require.NotNil(t, item.LastError)
		assert.Contains(t, *item.LastError, "rate limited")
	})

	t.Run("exhausted attempts fail terminally", func(t *testing.T) {
		f := newQueueFixture(t)
		f.reviewRepo.add(replyTestReview("rev-1", true))
		f.addItem("item-1", "rev-1", 2, nil) // max attempts is 3
		f.platform.replyErr = apperrors.NewExternalError("gone", nil)

		summary, err := f.svc.ProcessDue(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Failed)
		assert.Equal(t, entities.QueueStatusFailed, f.queueRepo.get("item-1").Status)
	})

	t.Run("item without a reply handle fails terminally", func(t *testing.T) {
		f := newQueueFixture(t)
		f.reviewRepo.add(replyTestReview("rev-1", false))
		f.addItem("item-1", "rev-1", 0, nil)

		summary, err := f.svc.ProcessDue(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Failed)
		assert.Equal(t, entities.QueueStatusFailed, f.queueRepo.get("item-1").Status)
		assert.Equal(t, 0, f.platform.replyCalls)
	})

	t.Run("one bad item does not stall the rest", func(t *testing.T) {
		f := newQueueFixture(t)
		f.reviewRepo.add(replyTestReview("rev-good", true))
		f.addItem("item-missing", "rev-gone", 0, nil)
		f.addItem("item-good", "rev-good", 0, nil)

		summary, err := f.svc.ProcessDue(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, summary.Processed)
		assert.Equal(t, 1, summary.Sent)
		assert.Equal(t, 1, summary.Rescheduled)
		assert.Equal(t, entities.QueueStatusSent, f.queueRepo.get("item-good").Status)
	})
}

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{1, 2 * time.Minute},
		{2, 4 * time.Minute},
		{3, 8 * time.Minute},
		{8, 256 * time.Minute},
		{12, 6 * time.Hour}, // capped
	}

	for _, tt := range tests {
		if got := backoffDelay(tt.attempts); got != tt.want {
			t.Errorf("backoffDelay(%d) = %s, want %s", tt.attempts, got, tt.want)
		}
	}
}
