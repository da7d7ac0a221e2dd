package entities

import "time"

// WebhookEvent stores received push notifications for idempotency.
// The webhook receiver always acknowledges; this record is what lets it
// skip redelivered messages.
type WebhookEvent struct {
	ID           string                 `json:"id" db:"id"`
	Provider     string                 `json:"provider" db:"provider"`
	EventType    string                 `json:"event_type" db:"event_type"`
	Payload      map[string]interface{} `json:"payload" db:"payload"`
	Processed    bool                   `json:"processed" db:"processed"`
	ProcessedAt  *time.Time             `json:"processed_at,omitempty" db:"processed_at"`
	ErrorMessage *string                `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time              `json:"created_at" db:"created_at"`
}
