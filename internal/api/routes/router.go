package routes

import (
	"net/http"

	"github.com/garrettjsmith/localpresence/internal/api/handlers"
	"github.com/garrettjsmith/localpresence/internal/api/middleware"
	"github.com/garrettjsmith/localpresence/internal/domain/repositories"
	"github.com/garrettjsmith/localpresence/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	syncHandler    *handlers.SyncHandler
	reviewHandler  *handlers.ReviewHandler
	webhookHandler *handlers.GoogleWebhookHandler
	eventsHandler  *handlers.EventsHandler

	cronSecret string
	apiKeys    repositories.APIKeyRepository

	metrics *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	syncHandler *handlers.SyncHandler,
	reviewHandler *handlers.ReviewHandler,
	webhookHandler *handlers.GoogleWebhookHandler,
	eventsHandler *handlers.EventsHandler,
	cronSecret string,
	apiKeys repositories.APIKeyRepository,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:            http.NewServeMux(),
		syncHandler:    syncHandler,
		reviewHandler:  reviewHandler,
		webhookHandler: webhookHandler,
		eventsHandler:  eventsHandler,
		cronSecret:     cronSecret,
		apiKeys:        apiKeys,
		metrics:        metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Health check endpoint
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Sync endpoints, guarded by the scheduler secret
	cron := middleware.CronAuth(r.cronSecret)
	r.mux.Handle("POST /api/sync/run", cron(http.HandlerFunc(r.syncHandler.RunSync)))
	r.mux.Handle("POST /api/sync/backfill", cron(http.HandlerFunc(r.syncHandler.Backfill)))

	// Review endpoints, scoped to the caller's organization
	org := middleware.OrgAuth(r.apiKeys)
	r.mux.Handle("POST /api/reviews/{id}/reply", org(http.HandlerFunc(r.reviewHandler.Reply)))
	r.mux.Handle("POST /api/reviews/bulk-reply", org(http.HandlerFunc(r.reviewHandler.BulkReply)))
	r.mux.Handle("PATCH /api/reviews/{id}/status", org(http.HandlerFunc(r.reviewHandler.UpdateStatus)))

	// Dashboard event stream
	if r.eventsHandler != nil {
		r.mux.Handle("GET /api/events", org(http.HandlerFunc(r.eventsHandler.StreamEvents)))
	}

	// Google push notifications; the handler itself acknowledges everything
	if r.webhookHandler != nil {
		r.mux.HandleFunc("POST /webhooks/google", r.webhookHandler.HandleWebhook)
	}

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)

	// CORS wraps everything so preflights never reach auth
	handler = middleware.CORSMiddleware(handler)

	return handler
}
