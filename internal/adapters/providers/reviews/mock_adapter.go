package reviews

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/garrettjsmith/localpresence/internal/domain/providers"
	apperrors "github.com/garrettjsmith/localpresence/pkg/errors"
)

// MockAdapter is an in-memory ReviewPlatform for development and tests.
type MockAdapter struct {
	mu      sync.Mutex
	pages   map[string][]*providers.ReviewPage
	replies map[string]string

	// FailReplies makes every PostReply fail, exercising queue fallbacks.
	FailReplies bool
}

// NewMockAdapter creates a new mock review platform.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		pages:   make(map[string][]*providers.ReviewPage),
		replies: make(map[string]string),
	}
}

// SeedPages registers the pages FetchReviews will serve for a resource,
// in order. Page tokens are synthetic indexes.
func (m *MockAdapter) SeedPages(resourceHandle string, pages []*providers.ReviewPage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, page := range pages {
		if i < len(pages)-1 {
			page.NextPageToken = fmt.Sprintf("page-%d", i+1)
		} else {
			page.NextPageToken = ""
		}
	}
	m.pages[resourceHandle] = pages
}

// SeedReviews registers a single page of reviews for a resource.
func (m *MockAdapter) SeedReviews(resourceHandle string, reviews []providers.PlatformReview) {
	avg := 0.0
	for _, r := range reviews {
		if r.Rating != nil {
			avg += float64(*r.Rating)
		}
	}
	if len(reviews) > 0 {
		avg /= float64(len(reviews))
	}
	m.SeedPages(resourceHandle, []*providers.ReviewPage{{
		Reviews:          reviews,
		TotalReviewCount: len(reviews),
		AverageRating:    avg,
	}})
}

// FetchReviews serves the seeded pages for a resource.
func (m *MockAdapter) FetchReviews(ctx context.Context, resourceHandle string, opts providers.FetchOptions) (*providers.ReviewPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pages, ok := m.pages[resourceHandle]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no seeded reviews for resource %s", resourceHandle))
	}

	index := 0
	if opts.PageToken != "" {
		if _, err := fmt.Sscanf(opts.PageToken, "page-%d", &index); err != nil {
			return nil, apperrors.NewValidationError("invalid page token")
		}
	}
	if index < 0 || index >= len(pages) {
		return nil, apperrors.NewValidationError("page token out of range")
	}

	return pages[index], nil
}

// PostReply records the reply in memory.
func (m *MockAdapter) PostReply(ctx context.Context, replyResource, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailReplies {
		return apperrors.NewExternalError("mock platform rejected reply", nil)
	}

	m.replies[replyResource] = text
	return nil
}

// SupportsReplies reports that the mock accepts replies.
func (m *MockAdapter) SupportsReplies() bool {
	return true
}

// Reply returns the recorded reply for a resource, if any.
func (m *MockAdapter) Reply(replyResource string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	text, ok := m.replies[replyResource]
	return text, ok
}

// SeedReview is a helper building one rated platform review.
func SeedReview(id, reviewer, comment string, rating int, publishedAt time.Time) providers.PlatformReview {
	original := float64(rating)
	return providers.PlatformReview{
		ID:             id,
		ReviewerName:   reviewer,
		Rating:         &rating,
		OriginalRating: &original,
		Comment:        comment,
		CreateTime:     publishedAt,
		ReplyResource:  "mock/reviews/" + id,
	}
}
