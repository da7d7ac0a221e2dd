package services

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garrettjsmith/localpresence/internal/domain/entities"
	"github.com/garrettjsmith/localpresence/internal/domain/providers"
)

// platformScales maps each platform's native rating scale. Ratings on a
// non-5 scale are converted and the original kept on the review.
var platformScales = map[entities.Platform]float64{
	entities.PlatformGoogle:   5,
	entities.PlatformFacebook: 5,
	entities.PlatformYelp:     5,
}

// SentimentForRating derives sentiment from a normalized 1-5 rating.
// A nil rating yields no sentiment.
func SentimentForRating(rating *int) entities.Sentiment {
	if rating == nil {
		return ""
	}
	switch {
	case *rating >= 4:
		return entities.SentimentPositive
	case *rating == 3:
		return entities.SentimentNeutral
	default:
		return entities.SentimentNegative
	}
}

// NormalizeReview converts a raw platform review into the canonical
// record for its source. Sentiment and metadata are recomputed on every
// sync, so edited reviews converge to the latest platform state.
func NormalizeReview(source *entities.ReviewSource, pr providers.PlatformReview, fetchedAt time.Time) *entities.Review {
	rating, original := normalizeRating(source.Platform, pr)

	review := &entities.Review{
		ID:                  uuid.New().String(),
		SourceID:            source.ID,
		LocationID:          source.LocationID,
		OrgID:               source.OrgID,
		Platform:            source.Platform,
		PlatformReviewID:    pr.ID,
		ReviewerName:        normalizeReviewerName(pr),
		ReviewerPhotoURL:    pr.ReviewerPhotoURL,
		ReviewerIsAnonymous: pr.ReviewerIsAnonymous,
		Rating:              rating,
		OriginalRating:      original,
		Body:                strings.TrimSpace(pr.Comment),
		Language:            pr.LanguageCode,
		PublishedAt:         pr.CreateTime,
		UpdatedAt:           pr.UpdateTime,
		Sentiment:           SentimentForRating(rating),
		Status:              entities.ReviewStatusNew,
		FetchedAt:           fetchedAt,
		CreatedAt:           fetchedAt,
	}

	// A reply the owner already published on the platform (for example
	// through the Google console) makes the review responded on arrival.
	if reply := strings.TrimSpace(pr.ReplyComment); reply != "" {
		via := entities.RepliedViaManual
		review.ReplyBody = &reply
		review.ReplyPublishedAt = pr.ReplyUpdateTime
		review.RepliedVia = &via
		review.Status = entities.ReviewStatusResponded
	}

	metadata := make(map[string]interface{}, len(pr.Metadata)+1)
	for k, v := range pr.Metadata {
		metadata[k] = v
	}
	if pr.ReplyResource != "" {
		metadata[entities.MetadataReplyResource] = pr.ReplyResource
	}
	if len(metadata) > 0 {
		review.PlatformMetadata = metadata
	}

	return review
}

func normalizeRating(platform entities.Platform, pr providers.PlatformReview) (*int, *float64) {
	if pr.Rating != nil {
		rating := *pr.Rating
		original := float64(rating)
		if pr.OriginalRating != nil {
			original = *pr.OriginalRating
		}
		return &rating, &original
	}

	if pr.OriginalRating == nil {
		return nil, nil
	}

	scale, ok := platformScales[platform]
	if !ok || scale <= 0 {
		scale = 5
	}
	original := *pr.OriginalRating
	normalized := int(original/scale*5 + 0.5)
	if normalized < 1 {
		normalized = 1
	}
	if normalized > 5 {
		normalized = 5
	}

	return &normalized, &original
}

func normalizeReviewerName(pr providers.PlatformReview) string {
	name := strings.TrimSpace(pr.ReviewerName)
	if name == "" && pr.ReviewerIsAnonymous {
		return "Anonymous"
	}
	return name
}
