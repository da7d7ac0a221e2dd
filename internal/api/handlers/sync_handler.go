package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/garrettjsmith/localpresence/internal/application/services"
	"github.com/garrettjsmith/localpresence/internal/infrastructure/observability"
)

// syncIdempotencyTTL bounds how long a sync run claim blocks duplicate
// cron deliveries with the same idempotency key.
const syncIdempotencyTTL = 10 * time.Minute

// SyncService defines the sync operations used by the handler.
type SyncService interface {
	SyncBatch(ctx context.Context) (*services.SyncSummary, error)
	Backfill(ctx context.Context, sourceIDs []string, maxSources int) (*services.SyncSummary, error)
}

// IdempotencyGuard claims a key for a bounded window. Claim reports false
// when another run already holds the key.
type IdempotencyGuard interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// SyncHandler handles sync trigger requests
type SyncHandler struct {
	service SyncService
	guard   IdempotencyGuard
	metrics *observability.Metrics
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(service SyncService, guard IdempotencyGuard, metrics *observability.Metrics) *SyncHandler {
	return &SyncHandler{
		service: service,
		guard:   guard,
		metrics: metrics,
	}
}

type backfillRequest struct {
	SourceIDs  []string `json:"source_ids"`
	MaxSources int      `json:"max_sources"`
}

// RunSync handles POST /api/sync/run
func (h *SyncHandler) RunSync(w http.ResponseWriter, r *http.Request) {
	if key := r.Header.Get("X-Idempotency-Key"); key != "" && h.guard != nil {
		claimed, err := h.guard.Claim(r.Context(), "sync:run:"+key, syncIdempotencyTTL)
		if err != nil {
			// Redis being down should not stop scheduled syncs.
			log.Printf("sync idempotency check failed: %v", err)
		} else if !claimed {
			respondWithJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
			return
		}
	}

	summary, err := h.service.SyncBatch(r.Context())
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	h.recordSummary(r.Context(), summary)
	respondWithJSON(w, http.StatusOK, summary)
}

// Backfill handles POST /api/sync/backfill
func (h *SyncHandler) Backfill(w http.ResponseWriter, r *http.Request) {
	var payload backfillRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid request payload")
			return
		}
	}

	summary, err := h.service.Backfill(r.Context(), payload.SourceIDs, payload.MaxSources)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	h.recordSummary(r.Context(), summary)
	respondWithJSON(w, http.StatusOK, summary)
}

func (h *SyncHandler) recordSummary(ctx context.Context, summary *services.SyncSummary) {
	if h.metrics == nil || summary == nil {
		return
	}
	for _, src := range summary.Sources {
		if src.New > 0 {
			observability.RecordSyncMetric(ctx, h.metrics, string(src.Platform), int64(src.New))
		}
	}
	if summary.Autopilot != nil && summary.Autopilot.Drafted > 0 {
		h.metrics.DraftsGenerated.Add(ctx, int64(summary.Autopilot.Drafted))
	}
}
