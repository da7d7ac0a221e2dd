package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/garrettjsmith/localpresence/internal/api/middleware"
	"github.com/garrettjsmith/localpresence/internal/application/services"
	"github.com/garrettjsmith/localpresence/internal/domain/entities"
	"github.com/garrettjsmith/localpresence/internal/infrastructure/observability"
	apperrors "github.com/garrettjsmith/localpresence/pkg/errors"
)

// ReplyService defines the review reply operations used by the handler.
type ReplyService interface {
	Reply(ctx context.Context, orgID, reviewID, text, actor string) (*services.ReplyOutcome, error)
	BulkReply(ctx context.Context, orgID string, reviewIDs []string, text, actor string) (*services.BulkReplySummary, error)
	UpdateStatus(ctx context.Context, orgID, reviewID string, status entities.ReviewStatus) error
}

// ReviewHandler handles review reply and triage requests
type ReviewHandler struct {
	service ReplyService
	metrics *observability.Metrics
}

// NewReviewHandler creates a new review handler
func NewReviewHandler(service ReplyService, metrics *observability.Metrics) *ReviewHandler {
	return &ReviewHandler{
		service: service,
		metrics: metrics,
	}
}

type replyRequest struct {
	Text string `json:"text"`
}

type bulkReplyRequest struct {
	ReviewIDs []string `json:"review_ids"`
	Text      string   `json:"text"`
}

type statusRequest struct {
	Status string `json:"status"`
}

// Reply handles POST /api/reviews/{id}/reply
func (h *ReviewHandler) Reply(w http.ResponseWriter, r *http.Request) {
	reviewID := r.PathValue("id")
	if reviewID == "" {
		respondWithError(w, http.StatusBadRequest, "review ID is required")
		return
	}

	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "missing credentials")
		return
	}

	var payload replyRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	outcome, err := h.service.Reply(r.Context(), principal.OrgID, reviewID, payload.Text, principal.KeyLabel)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	if outcome != nil {
		switch outcome.PostedVia {
		case "api":
			h.recordReplies(r.Context(), 1, 0)
		case "queued":
			h.recordReplies(r.Context(), 0, 1)
		}
	}
	respondWithJSON(w, http.StatusOK, outcome)
}

// BulkReply handles POST /api/reviews/bulk-reply
func (h *ReviewHandler) BulkReply(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "missing credentials")
		return
	}

	var payload bulkReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if len(payload.ReviewIDs) == 0 {
		respondWithError(w, http.StatusBadRequest, "review_ids is required")
		return
	}

	summary, err := h.service.BulkReply(r.Context(), principal.OrgID, payload.ReviewIDs, payload.Text, principal.KeyLabel)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	if summary != nil {
		h.recordReplies(r.Context(), summary.Posted, summary.Queued)
	}
	respondWithJSON(w, http.StatusOK, summary)
}

func (h *ReviewHandler) recordReplies(ctx context.Context, posted, queued int) {
	if h.metrics == nil {
		return
	}
	if posted > 0 {
		h.metrics.RepliesPosted.Add(ctx, int64(posted))
	}
	if queued > 0 {
		h.metrics.RepliesQueued.Add(ctx, int64(queued))
	}
}

// UpdateStatus handles PATCH /api/reviews/{id}/status
func (h *ReviewHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	reviewID := r.PathValue("id")
	if reviewID == "" {
		respondWithError(w, http.StatusBadRequest, "review ID is required")
		return
	}

	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "missing credentials")
		return
	}

	var payload statusRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	if err := h.service.UpdateStatus(r.Context(), principal.OrgID, reviewID, entities.ReviewStatus(payload.Status)); err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": payload.Status})
}

// Helper functions
func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

func respondWithAppError(w http.ResponseWriter, err error) {
	respondWithError(w, apperrors.HTTPStatus(err), err.Error())
}
