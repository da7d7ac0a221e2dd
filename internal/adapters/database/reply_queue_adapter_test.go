package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/doug-martin/goqu/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garrettjsmith/localpresence/internal/domain/entities"
	"github.com/garrettjsmith/localpresence/internal/infrastructure/clients/postgres"
	apperrors "github.com/garrettjsmith/localpresence/pkg/errors"
)

func newTestReplyQueueAdapter(t *testing.T) (*ReplyQueueAdapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	client := postgres.NewClientFromDB(db)
	return &ReplyQueueAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}, mock
}

func TestReplyQueueAdapter_ListDue(t *testing.T) {
	adapter, mock := newTestReplyQueueAdapter(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	scheduled := now.Add(-5 * time.Minute)

	rows := sqlmock.NewRows([]string{
		"id", "review_id", "reply_body", "status", "source", "scheduled_for",
		"queued_by", "attempts", "last_error", "created_at", "updated_at",
	}).
		AddRow("item-1", "rev-1", "Thanks!", "pending", "ai_autopilot", scheduled,
			"autopilot", 0, nil, now.Add(-time.Hour), now.Add(-time.Hour)).
		AddRow("item-2", "rev-2", "Sorry!", "pending", "manual_retry", nil,
			"user-7", 2, "rate limited", now.Add(-time.Hour), now.Add(-30*time.Minute))

	mock.ExpectQuery(`SELECT .+ FROM "reply_queue"`).WillReturnRows(rows)

	items, err := adapter.ListDue(context.Background(), now, 50)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, entities.QueueSourceAIAutopilot, items[0].Source)
	require.NotNil(t, items[0].ScheduledFor)
	assert.Nil(t, items[1].ScheduledFor)
	assert.Equal(t, 2, items[1].Attempts)
	require.NotNil(t, items[1].LastError)
	assert.Equal(t, "rate limited", *items[1].LastError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplyQueueAdapter_HasPendingAutopilot(t *testing.T) {
	tests := []struct {
		name  string
		count int
		want  bool
	}{
		{"pending item exists", 1, true},
		{"no pending items", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, mock := newTestReplyQueueAdapter(t)
			mock.ExpectQuery(`SELECT COUNT\("id"\) FROM "reply_queue"`).
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(tt.count))

			got, err := adapter.HasPendingAutopilot(context.Background(), "rev-1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReplyQueueAdapter_Reschedule(t *testing.T) {
	t.Run("updates the row", func(t *testing.T) {
		adapter, mock := newTestReplyQueueAdapter(t)
		mock.ExpectExec(`UPDATE "reply_queue"`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := adapter.Reschedule(context.Background(), "item-1", 3,
			time.Date(2026, 3, 10, 12, 8, 0, 0, time.UTC), "still failing")
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing item is a not found error", func(t *testing.T) {
		adapter, mock := newTestReplyQueueAdapter(t)
		mock.ExpectExec(`UPDATE "reply_queue"`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := adapter.Reschedule(context.Background(), "item-gone", 1, time.Now(), "boom")
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	})
}
