package reviews

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/garrettjsmith/localpresence/internal/domain/providers"
	apperrors "github.com/garrettjsmith/localpresence/pkg/errors"
)

const (
	googleAPIBaseURL   = "https://mybusiness.googleapis.com/v4"
	defaultHTTPTimeout = 15 * time.Second
)

// starRatings maps the Google Business Profile star rating enum to a
// numeric rating.
var starRatings = map[string]int{
	"ONE":   1,
	"TWO":   2,
	"THREE": 3,
	"FOUR":  4,
	"FIVE":  5,
}

// GoogleReviewsAdapter implements the ReviewPlatform interface against
// the Google Business Profile API.
type GoogleReviewsAdapter struct {
	accessToken string
	baseURL     string
	httpClient  *http.Client
}

// NewGoogleReviewsAdapter creates a new Google Business Profile adapter.
func NewGoogleReviewsAdapter(accessToken string) *GoogleReviewsAdapter {
	return NewGoogleReviewsAdapterWithOptions(accessToken, googleAPIBaseURL, nil)
}

// NewGoogleReviewsAdapterWithOptions allows overriding base URL and HTTP client (used for tests).
func NewGoogleReviewsAdapterWithOptions(accessToken, baseURL string, httpClient *http.Client) *GoogleReviewsAdapter {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = googleAPIBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &GoogleReviewsAdapter{
		accessToken: accessToken,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		httpClient:  httpClient,
	}
}

type googleReviewer struct {
	ProfilePhotoURL string `json:"profilePhotoUrl"`
	DisplayName     string `json:"displayName"`
	IsAnonymous     bool   `json:"isAnonymous"`
}

type googleReviewReply struct {
	Comment    string    `json:"comment"`
	UpdateTime time.Time `json:"updateTime"`
}

type googleReview struct {
	Name       string             `json:"name"`
	ReviewID   string             `json:"reviewId"`
	Reviewer   googleReviewer     `json:"reviewer"`
	StarRating string             `json:"starRating"`
	Comment    string             `json:"comment"`
	CreateTime time.Time          `json:"createTime"`
	UpdateTime *time.Time         `json:"updateTime"`
	Reply      *googleReviewReply `json:"reviewReply"`
}

type googleReviewsResponse struct {
	Reviews          []googleReview `json:"reviews"`
	NextPageToken    string         `json:"nextPageToken"`
	TotalReviewCount int            `json:"totalReviewCount"`
	AverageRating    float64        `json:"averageRating"`
}

// FetchReviews fetches one page of reviews for a location resource,
// newest first.
func (g *GoogleReviewsAdapter) FetchReviews(ctx context.Context, resourceHandle string, opts providers.FetchOptions) (*providers.ReviewPage, error) {
	if resourceHandle == "" {
		return nil, apperrors.NewValidationError("resource handle is required")
	}

	params := url.Values{}
	if opts.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(opts.PageSize))
	}
	if opts.PageToken != "" {
		params.Set("pageToken", opts.PageToken)
	}
	orderBy := opts.OrderBy
	if orderBy == "" {
		orderBy = "updateTime desc"
	}
	params.Set("orderBy", orderBy)

	endpoint := fmt.Sprintf("%s/%s/reviews?%s", g.baseURL, resourceHandle, params.Encode())

	body, err := g.doRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var resp googleReviewsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperrors.NewExternalError("failed to decode reviews response", err)
	}

	page := &providers.ReviewPage{
		NextPageToken:    resp.NextPageToken,
		TotalReviewCount: resp.TotalReviewCount,
		AverageRating:    resp.AverageRating,
	}

	for _, gr := range resp.Reviews {
		page.Reviews = append(page.Reviews, convertGoogleReview(gr))
	}

	return page, nil
}

// PostReply publishes an owner reply against a review resource name.
func (g *GoogleReviewsAdapter) PostReply(ctx context.Context, replyResource, text string) error {
	if replyResource == "" {
		return apperrors.NewValidationError("reply resource is required")
	}

	payload, err := json.Marshal(map[string]string{"comment": text})
	if err != nil {
		return apperrors.NewInternalError("failed to marshal reply", err)
	}

	endpoint := fmt.Sprintf("%s/%s/reply", g.baseURL, replyResource)
	if _, err := g.doRequest(ctx, http.MethodPut, endpoint, payload); err != nil {
		return err
	}

	return nil
}

// SupportsReplies reports that Google exposes a reply API.
func (g *GoogleReviewsAdapter) SupportsReplies() bool {
	return true
}

func (g *GoogleReviewsAdapter) doRequest(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to create request", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.accessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewExternalError("google api request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewExternalError("failed to read google api response", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, apperrors.NewUnauthorizedError(
			fmt.Sprintf("google api rejected credentials (status %d)", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, apperrors.NewExternalError(
			fmt.Sprintf("google api error (status %d): %s", resp.StatusCode, string(body)), nil)
	}

	return body, nil
}

func convertGoogleReview(gr googleReview) providers.PlatformReview {
	review := providers.PlatformReview{
		ID:                  gr.ReviewID,
		ReviewerName:        gr.Reviewer.DisplayName,
		ReviewerPhotoURL:    gr.Reviewer.ProfilePhotoURL,
		ReviewerIsAnonymous: gr.Reviewer.IsAnonymous,
		Comment:             gr.Comment,
		CreateTime:          gr.CreateTime,
		UpdateTime:          gr.UpdateTime,
		ReplyResource:       gr.Name,
	}

	if rating, ok := starRatings[gr.StarRating]; ok {
		review.Rating = &rating
		original := float64(rating)
		review.OriginalRating = &original
	}

	if gr.Reply != nil {
		review.ReplyComment = gr.Reply.Comment
		if !gr.Reply.UpdateTime.IsZero() {
			repliedAt := gr.Reply.UpdateTime
			review.ReplyUpdateTime = &repliedAt
		}
	}

	return review
}
