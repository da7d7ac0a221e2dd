package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/garrettjsmith/localpresence/internal/api/middleware"
	"github.com/garrettjsmith/localpresence/internal/domain/providers"
)

const sseHeartbeatInterval = 30 * time.Second

// EventsHandler streams review lifecycle events to dashboard clients over
// Server-Sent Events. Events are filtered to the caller's organization.
type EventsHandler struct {
	eventBus providers.EventBus
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(eventBus providers.EventBus) *EventsHandler {
	return &EventsHandler{
		eventBus: eventBus,
	}
}

// StreamEvents handles GET /api/events
func (h *EventsHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "missing credentials")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	eventChan, err := h.eventBus.Subscribe(r.Context(), providers.ReviewEventsChannel)
	if err != nil {
		log.Printf("Failed to subscribe to %s: %v", providers.ReviewEventsChannel, err)
		respondWithError(w, http.StatusInternalServerError, "event stream unavailable")
		return
	}

	h.sendEvent(w, "connected", map[string]interface{}{
		"org_id":    principal.OrgID,
		"timestamp": time.Now(),
	})
	flusher.Flush()

	ticker := time.NewTicker(sseHeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			h.sendEvent(w, "heartbeat", map[string]interface{}{
				"timestamp": time.Now(),
			})
			flusher.Flush()
		case event, open := <-eventChan:
			if !open {
				return
			}
			if event == nil || event.OrgID != principal.OrgID {
				continue
			}
			h.sendEvent(w, string(event.Type), event)
			flusher.Flush()
		}
	}
}

func (h *EventsHandler) sendEvent(w http.ResponseWriter, eventType string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Printf("Failed to marshal SSE event: %v", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, payload)
}
