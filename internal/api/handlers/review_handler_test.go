package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garrettjsmith/localpresence/internal/api/middleware"
	"github.com/garrettjsmith/localpresence/internal/application/services"
	"github.com/garrettjsmith/localpresence/internal/domain/entities"
	apperrors "github.com/garrettjsmith/localpresence/pkg/errors"
)

type fakeReplyService struct {
	outcome *services.ReplyOutcome
	summary *services.BulkReplySummary
	err     error

	gotOrgID  string
	gotReview string
	gotText   string
	gotActor  string
	gotStatus entities.ReviewStatus
}

func (f *fakeReplyService) Reply(ctx context.Context, orgID, reviewID, text, actor string) (*services.ReplyOutcome, error) {
	f.gotOrgID, f.gotReview, f.gotText, f.gotActor = orgID, reviewID, text, actor
	return f.outcome, f.err
}

func (f *fakeReplyService) BulkReply(ctx context.Context, orgID string, reviewIDs []string, text, actor string) (*services.BulkReplySummary, error) {
	f.gotOrgID, f.gotText, f.gotActor = orgID, text, actor
	return f.summary, f.err
}

func (f *fakeReplyService) UpdateStatus(ctx context.Context, orgID, reviewID string, status entities.ReviewStatus) error {
	f.gotOrgID, f.gotReview, f.gotStatus = orgID, reviewID, status
	return f.err
}

func authedRequest(method, target string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	principal := middleware.Principal{OrgID: "org-1", KeyID: "key-1", KeyLabel: "dashboard"}
	return req.WithContext(middleware.WithPrincipal(req.Context(), principal))
}

func TestReviewHandler_Reply(t *testing.T) {
	t.Run("posts a reply for the authenticated org", func(t *testing.T) {
		service := &fakeReplyService{outcome: &services.ReplyOutcome{ReviewID: "rev-1", PostedVia: "api"}}
		handler := NewReviewHandler(service, nil)

		req := authedRequest(http.MethodPost, "/api/reviews/rev-1/reply", map[string]string{"text": "Thanks!"})
		req.SetPathValue("id", "rev-1")
		rec := httptest.NewRecorder()

		handler.Reply(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "org-1", service.gotOrgID)
		assert.Equal(t, "rev-1", service.gotReview)
		assert.Equal(t, "Thanks!", service.gotText)
		assert.Equal(t, "dashboard", service.gotActor)

		var outcome services.ReplyOutcome
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&outcome))
		assert.Equal(t, "api", outcome.PostedVia)
	})

	t.Run("maps service errors to http statuses", func(t *testing.T) {
		tests := []struct {
			name     string
			err      error
			wantCode int
		}{
			{"validation", apperrors.NewValidationError("text is required"), http.StatusBadRequest},
			{"not found", apperrors.NewNotFoundError("review not found"), http.StatusNotFound},
			{"unauthorized", apperrors.NewUnauthorizedError("wrong org"), http.StatusUnauthorized},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				handler := NewReviewHandler(&fakeReplyService{err: tt.err}, nil)

				req := authedRequest(http.MethodPost, "/api/reviews/rev-1/reply", map[string]string{"text": "x"})
				req.SetPathValue("id", "rev-1")
				rec := httptest.NewRecorder()

				handler.Reply(rec, req)
				assert.Equal(t, tt.wantCode, rec.Code)
			})
		}
	})

	t.Run("rejects requests without a principal", func(t *testing.T) {
		handler := NewReviewHandler(&fakeReplyService{}, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/reviews/rev-1/reply", bytes.NewBufferString(`{"text":"x"}`))
		req.SetPathValue("id", "rev-1")
		rec := httptest.NewRecorder()

		handler.Reply(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestReviewHandler_BulkReply(t *testing.T) {
	t.Run("requires review ids", func(t *testing.T) {
		handler := NewReviewHandler(&fakeReplyService{}, nil)

		req := authedRequest(http.MethodPost, "/api/reviews/bulk-reply", map[string]interface{}{"text": "Thanks!"})
		rec := httptest.NewRecorder()

		handler.BulkReply(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("returns the per-review summary", func(t *testing.T) {
		service := &fakeReplyService{summary: &services.BulkReplySummary{
			Posted: 1, Failed: 1,
			Failures: map[string]string{"rev-2": "review not found"},
		}}
		handler := NewReviewHandler(service, nil)

		req := authedRequest(http.MethodPost, "/api/reviews/bulk-reply", map[string]interface{}{
			"review_ids": []string{"rev-1", "rev-2"},
			"text":       "Thanks!",
		})
		rec := httptest.NewRecorder()

		handler.BulkReply(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var summary services.BulkReplySummary
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&summary))
		assert.Equal(t, 1, summary.Posted)
		assert.Contains(t, summary.Failures, "rev-2")
	})
}

func TestReviewHandler_UpdateStatus(t *testing.T) {
	service := &fakeReplyService{}
	handler := NewReviewHandler(service, nil)

	req := authedRequest(http.MethodPatch, "/api/reviews/rev-1/status", map[string]string{"status": "archived"})
	req.SetPathValue("id", "rev-1")
	rec := httptest.NewRecorder()

	handler.UpdateStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, entities.ReviewStatusArchived, service.gotStatus)
}
