package entities

import "time"

// Platform identifies an external review platform.
type Platform string

const (
	PlatformGoogle   Platform = "google"
	PlatformFacebook Platform = "facebook"
	PlatformYelp     Platform = "yelp"
)

// Sentiment is the derived tone of a review. The zero value means the
// review carries no rating and no sentiment could be derived.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// ReviewStatus tracks where a review sits in the response workflow.
type ReviewStatus string

const (
	ReviewStatusNew       ReviewStatus = "new"
	ReviewStatusSeen      ReviewStatus = "seen"
	ReviewStatusFlagged   ReviewStatus = "flagged"
	ReviewStatusResponded ReviewStatus = "responded"
	ReviewStatusArchived  ReviewStatus = "archived"
)

// RepliedVia records how a reply reached the platform.
type RepliedVia string

const (
	RepliedViaAPI    RepliedVia = "api"
	RepliedViaManual RepliedVia = "manual"
)

// MetadataReplyResource is the platform metadata key holding the
// platform-specific handle replies must be posted against.
const MetadataReplyResource = "reply_resource"

// Review is one customer review synced from an external platform.
// The pair (SourceID, PlatformReviewID) is the idempotence key for
// every sync path.
type Review struct {
	ID                  string                 `json:"id" db:"id"`
	SourceID            string                 `json:"source_id" db:"source_id"`
	LocationID          string                 `json:"location_id" db:"location_id"`
	OrgID               string                 `json:"org_id" db:"org_id"`
	Platform            Platform               `json:"platform" db:"platform"`
	PlatformReviewID    string                 `json:"platform_review_id" db:"platform_review_id"`
	ReviewerName        string                 `json:"reviewer_name" db:"reviewer_name"`
	ReviewerPhotoURL    string                 `json:"reviewer_photo_url" db:"reviewer_photo_url"`
	ReviewerIsAnonymous bool                   `json:"reviewer_is_anonymous" db:"reviewer_is_anonymous"`
	Rating              *int                   `json:"rating,omitempty" db:"rating"`
	OriginalRating      *float64               `json:"original_rating,omitempty" db:"original_rating"`
	Body                string                 `json:"body" db:"body"`
	Language            string                 `json:"language" db:"language"`
	PublishedAt         time.Time              `json:"published_at" db:"published_at"`
	UpdatedAt           *time.Time             `json:"updated_at,omitempty" db:"updated_at"`
	ReplyBody           *string                `json:"reply_body,omitempty" db:"reply_body"`
	ReplyPublishedAt    *time.Time             `json:"reply_published_at,omitempty" db:"reply_published_at"`
	RepliedBy           *string                `json:"replied_by,omitempty" db:"replied_by"`
	RepliedVia          *RepliedVia            `json:"replied_via,omitempty" db:"replied_via"`
	Sentiment           Sentiment              `json:"sentiment,omitempty" db:"sentiment"`
	Status              ReviewStatus           `json:"status" db:"status"`
	AIDraft             *string                `json:"ai_draft,omitempty" db:"ai_draft"`
	AIDraftGeneratedAt  *time.Time             `json:"ai_draft_generated_at,omitempty" db:"ai_draft_generated_at"`
	PlatformMetadata    map[string]interface{} `json:"platform_metadata,omitempty" db:"platform_metadata"`
	FetchedAt           time.Time              `json:"fetched_at" db:"fetched_at"`
	CreatedAt           time.Time              `json:"created_at" db:"created_at"`
}

// ReplyResource returns the platform reply handle stored during sync,
// or "" when the platform metadata does not carry one.
func (r *Review) ReplyResource() string {
	if r.PlatformMetadata == nil {
		return ""
	}
	if handle, ok := r.PlatformMetadata[MetadataReplyResource].(string); ok {
		return handle
	}
	return ""
}

// HasReply reports whether a reply has already been recorded.
func (r *Review) HasReply() bool {
	return r.ReplyBody != nil && *r.ReplyBody != ""
}
