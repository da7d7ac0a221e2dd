package entities

import "time"

// ReviewEventType identifies a review lifecycle event on the bus.
type ReviewEventType string

const (
	ReviewEventSynced  ReviewEventType = "review.synced"
	ReviewEventReplied ReviewEventType = "review.replied"
)

// ReviewEvent is published to the event bus so dashboard consumers can
// react to pipeline activity without polling.
type ReviewEvent struct {
	ID         string          `json:"id"`
	Type       ReviewEventType `json:"type"`
	ReviewID   string          `json:"review_id"`
	SourceID   string          `json:"source_id"`
	LocationID string          `json:"location_id"`
	OrgID      string          `json:"org_id"`
	OccurredAt time.Time       `json:"occurred_at"`
}
