package entities

import "time"

// QueueStatus is the delivery state of a queued reply.
type QueueStatus string

const (
	QueueStatusPending QueueStatus = "pending"
	QueueStatusSent    QueueStatus = "sent"
	QueueStatusFailed  QueueStatus = "failed"
)

// QueueSource records what enqueued a reply.
type QueueSource string

const (
	QueueSourceManualRetry QueueSource = "manual_retry"
	QueueSourceAIAutopilot QueueSource = "ai_autopilot"
)

// ReplyQueueItem is a durable unit of deferred reply work. A nil
// ScheduledFor means "as soon as possible".
type ReplyQueueItem struct {
	ID           string      `json:"id" db:"id"`
	ReviewID     string      `json:"review_id" db:"review_id"`
	ReplyBody    string      `json:"reply_body" db:"reply_body"`
	Status       QueueStatus `json:"status" db:"status"`
	Source       QueueSource `json:"source" db:"source"`
	ScheduledFor *time.Time  `json:"scheduled_for,omitempty" db:"scheduled_for"`
	QueuedBy     string      `json:"queued_by" db:"queued_by"`
	Attempts     int         `json:"attempts" db:"attempts"`
	LastError    *string     `json:"last_error,omitempty" db:"last_error"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
}

// Due reports whether the item is ready for dispatch at the given time.
func (i *ReplyQueueItem) Due(now time.Time) bool {
	if i.Status != QueueStatusPending {
		return false
	}
	return i.ScheduledFor == nil || !i.ScheduledFor.After(now)
}
