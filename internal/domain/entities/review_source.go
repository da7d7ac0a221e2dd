package entities

import "time"

// SyncStatus is the sync lifecycle state of a review source.
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusActive  SyncStatus = "active"
	SyncStatusError   SyncStatus = "error"
)

// Metadata keys maintained by the sync pipeline.
const (
	MetadataResourceName = "resource_name"
	MetadataLastError    = "last_error"
	MetadataLastErrorAt  = "last_error_at"
)

// ReviewSource binds one location to one external review feed.
type ReviewSource struct {
	ID               string                 `json:"id" db:"id"`
	LocationID       string                 `json:"location_id" db:"location_id"`
	OrgID            string                 `json:"org_id" db:"org_id"`
	Platform         Platform               `json:"platform" db:"platform"`
	ResourceHandle   string                 `json:"resource_handle" db:"resource_handle"`
	SyncStatus       SyncStatus             `json:"sync_status" db:"sync_status"`
	LastSyncedAt     *time.Time             `json:"last_synced_at,omitempty" db:"last_synced_at"`
	TotalReviewCount int                    `json:"total_review_count" db:"total_review_count"`
	AverageRating    float64                `json:"average_rating" db:"average_rating"`
	Metadata         map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	CreatedAt        time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at" db:"updated_at"`
}

// SourceStats are the platform-reported aggregates recorded after each
// successful sync. They come from the platform's own totals, never from
// counting local rows.
type SourceStats struct {
	TotalReviewCount int
	AverageRating    float64
}

// PlatformIntegration maps an external push-notification resource
// identifier to a review source.
type PlatformIntegration struct {
	ID                 string    `json:"id" db:"id"`
	SourceID           string    `json:"source_id" db:"source_id"`
	Platform           Platform  `json:"platform" db:"platform"`
	ExternalResourceID string    `json:"external_resource_id" db:"external_resource_id"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}
