package providers

import (
	"context"
	"time"
)

// FetchOptions controls one page fetch against the platform API.
type FetchOptions struct {
	PageSize  int
	PageToken string
	OrderBy   string
}

// PlatformReview is one raw review as returned by a platform adapter,
// before normalization into the canonical Review record.
type PlatformReview struct {
	ID                  string
	ReviewerName        string
	ReviewerPhotoURL    string
	ReviewerIsAnonymous bool
	Rating              *int
	OriginalRating      *float64
	Comment             string
	LanguageCode        string
	CreateTime          time.Time
	UpdateTime          *time.Time
	ReplyResource       string
	ReplyComment        string
	ReplyUpdateTime     *time.Time
	Metadata            map[string]interface{}
}

// ReviewPage is one page of platform reviews plus the platform's own
// aggregate totals.
type ReviewPage struct {
	Reviews          []PlatformReview
	NextPageToken    string
	TotalReviewCount int
	AverageRating    float64
}

// ReviewPlatform is the external review platform collaborator.
type ReviewPlatform interface {
	FetchReviews(ctx context.Context, resourceHandle string, opts FetchOptions) (*ReviewPage, error)
	// PostReply publishes a reply against the platform reply handle.
	// Returns an error on any non-2xx platform response.
	PostReply(ctx context.Context, replyResource, text string) error
	// SupportsReplies reports whether the platform exposes a reply API.
	// Platforms without one get manual (out-of-band) reply handling.
	SupportsReplies() bool
}
