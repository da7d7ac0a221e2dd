package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/garrettjsmith/localpresence/internal/application/services"
	"github.com/garrettjsmith/localpresence/internal/domain/entities"
)

const webhookProviderGoogle = "google"

// WebhookSyncService defines the sync operation triggered by push
// notifications.
type WebhookSyncService interface {
	SyncResource(ctx context.Context, platform entities.Platform, externalResourceID string) (*services.SyncSummary, error)
}

// GoogleWebhookHandler handles Google Business Profile push notifications
// delivered through a Pub/Sub push subscription.
//
// Pub/Sub redelivers until it sees a 2xx, so the handler acknowledges
// everything, including payloads it cannot parse, and relies on the
// webhook_events table to skip messages it has already processed.
type GoogleWebhookHandler struct {
	db          *sqlx.DB
	syncService WebhookSyncService
}

// NewGoogleWebhookHandler creates a new Google webhook handler
func NewGoogleWebhookHandler(db *sqlx.DB, syncService WebhookSyncService) *GoogleWebhookHandler {
	return &GoogleWebhookHandler{
		db:          db,
		syncService: syncService,
	}
}

// pubSubEnvelope is the Pub/Sub push delivery wrapper.
type pubSubEnvelope struct {
	Message      pubSubMessage `json:"message"`
	Subscription string        `json:"subscription"`
}

type pubSubMessage struct {
	MessageID   string            `json:"messageId"`
	Data        string            `json:"data"`
	Attributes  map[string]string `json:"attributes"`
	PublishTime time.Time         `json:"publishTime"`
}

// reviewNotification is the decoded message payload.
type reviewNotification struct {
	// Name is the full review resource,
	// accounts/{a}/locations/{l}/reviews/{r}.
	Name string `json:"name"`
	Type string `json:"type"`
}

// HandleWebhook handles POST /webhooks/google
func (h *GoogleWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ack := func(status string) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		fmt.Printf("Failed to read webhook body: %v\n", err)
		ack("ignored")
		return
	}

	var envelope pubSubEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		fmt.Printf("Malformed push envelope: %v\n", err)
		ack("ignored")
		return
	}

	eventID := envelope.Message.MessageID
	if eventID == "" {
		eventID = uuid.New().String()
	}

	if h.isEventProcessed(ctx, eventID) {
		ack("already_processed")
		return
	}

	notification, err := decodeNotification(envelope.Message.Data)
	if err != nil {
		fmt.Printf("Malformed notification data: %v\n", err)
		ack("ignored")
		return
	}

	if err := h.storeWebhookEvent(ctx, eventID, notification, envelope.Message.Data); err != nil {
		fmt.Printf("Failed to store webhook event: %v\n", err)
	}

	resource := locationResource(notification.Name)
	if resource == "" {
		fmt.Printf("Notification without a location resource: %q\n", notification.Name)
		h.markEventFailed(ctx, eventID, fmt.Errorf("no location resource in %q", notification.Name))
		ack("ignored")
		return
	}

	if _, err := h.syncService.SyncResource(ctx, entities.PlatformGoogle, resource); err != nil {
		// Ack anyway: a redelivery loop will not fix a bad integration,
		// and the scheduled sync picks the source up later.
		fmt.Printf("Webhook sync for %s failed: %v\n", resource, err)
		h.markEventFailed(ctx, eventID, err)
		ack("sync_failed")
		return
	}

	h.markEventProcessed(ctx, eventID)
	ack("processed")
}

// decodeNotification unwraps the base64 message data into a notification.
func decodeNotification(data string) (*reviewNotification, error) {
	if data == "" {
		return nil, fmt.Errorf("empty message data")
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 data: %w", err)
	}

	var notification reviewNotification
	if err := json.Unmarshal(raw, &notification); err != nil {
		return nil, fmt.Errorf("invalid notification json: %w", err)
	}

	return &notification, nil
}

// locationResource trims a review resource down to its location,
// accounts/{a}/locations/{l}.
func locationResource(name string) string {
	if name == "" {
		return ""
	}
	if idx := strings.Index(name, "/reviews/"); idx > 0 {
		return name[:idx]
	}
	if strings.Contains(name, "/locations/") {
		return name
	}
	return ""
}

func (h *GoogleWebhookHandler) isEventProcessed(ctx context.Context, eventID string) bool {
	var count int
	query := `SELECT COUNT(*) FROM webhook_events WHERE id = $1 AND provider = $2 AND processed = true`
	h.db.GetContext(ctx, &count, query, eventID, webhookProviderGoogle)
	return count > 0
}

func (h *GoogleWebhookHandler) storeWebhookEvent(ctx context.Context, eventID string, notification *reviewNotification, rawData string) error {
	payload, _ := json.Marshal(map[string]interface{}{
		"name": notification.Name,
		"type": notification.Type,
		"data": rawData,
	})
	query := `
		INSERT INTO webhook_events (id, provider, event_type, payload, processed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (provider, id) DO NOTHING
	`
	_, err := h.db.ExecContext(ctx, query, eventID, webhookProviderGoogle, notification.Type, payload, false, time.Now())
	return err
}

func (h *GoogleWebhookHandler) markEventProcessed(ctx context.Context, eventID string) {
	query := `UPDATE webhook_events SET processed = true, processed_at = $1 WHERE id = $2 AND provider = $3`
	if _, err := h.db.ExecContext(ctx, query, time.Now(), eventID, webhookProviderGoogle); err != nil {
		fmt.Printf("Failed to mark webhook event processed: %v\n", err)
	}
}

func (h *GoogleWebhookHandler) markEventFailed(ctx context.Context, eventID string, cause error) {
	query := `UPDATE webhook_events SET error_message = $1 WHERE id = $2 AND provider = $3`
	if _, err := h.db.ExecContext(ctx, query, cause.Error(), eventID, webhookProviderGoogle); err != nil {
		fmt.Printf("Failed to mark webhook event failed: %v\n", err)
	}
}
