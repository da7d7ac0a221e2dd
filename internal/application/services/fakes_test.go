package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/garrettjsmith/localpresence/internal/domain/entities"
	"github.com/garrettjsmith/localpresence/internal/domain/providers"
	"github.com/garrettjsmith/localpresence/internal/domain/repositories"
	apperrors "github.com/garrettjsmith/localpresence/pkg/errors"
)

// In-memory collaborators shared across the service tests.

type fakeReviewRepo struct {
	mu      sync.Mutex
	byKey   map[string]*entities.Review
	byID    map[string]*entities.Review
	upserts int
}

func newFakeReviewRepo() *fakeReviewRepo {
	return &fakeReviewRepo{
		byKey: map[string]*entities.Review{},
		byID:  map[string]*entities.Review{},
	}
}

func reviewKey(sourceID, platformReviewID string) string {
	return sourceID + "|" + platformReviewID
}

func (r *fakeReviewRepo) Upsert(ctx context.Context, review *entities.Review) (repositories.UpsertResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++

	key := reviewKey(review.SourceID, review.PlatformReviewID)
	existing, ok := r.byKey[key]
	if !ok {
		clone := *review
		r.byKey[key] = &clone
		r.byID[clone.ID] = &clone
		return repositories.UpsertResult{Inserted: true}, nil
	}

	review.ID = existing.ID
	changed := existing.Body != review.Body ||
		!equalIntPtr(existing.Rating, review.Rating) ||
		!equalTimePtr(existing.UpdatedAt, review.UpdatedAt)
	replyArrived := existing.ReplyBody == nil && review.ReplyBody != nil
	if !changed && !replyArrived {
		return repositories.UpsertResult{}, nil
	}

	existing.Body = review.Body
	existing.Rating = review.Rating
	existing.UpdatedAt = review.UpdatedAt
	existing.Sentiment = review.Sentiment
	existing.PlatformMetadata = review.PlatformMetadata
	existing.FetchedAt = review.FetchedAt
	if replyArrived {
		existing.ReplyBody = review.ReplyBody
		existing.ReplyPublishedAt = review.ReplyPublishedAt
		existing.RepliedVia = review.RepliedVia
		existing.Status = entities.ReviewStatusResponded
	}
	return repositories.UpsertResult{Changed: true}, nil
}

func (r *fakeReviewRepo) GetByID(ctx context.Context, id string) (*entities.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	review, ok := r.byID[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("review not found")
	}
	clone := *review
	return &clone, nil
}

func (r *fakeReviewRepo) ListByIDs(ctx context.Context, ids []string) ([]*entities.Review, error) {
	var out []*entities.Review
	for _, id := range ids {
		if review, err := r.GetByID(ctx, id); err == nil {
			out = append(out, review)
		}
	}
	return out, nil
}

func (r *fakeReviewRepo) List(ctx context.Context, filter repositories.ReviewFilter) ([]*entities.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.Review
	for _, review := range r.byID {
		clone := *review
		out = append(out, &clone)
	}
	return out, nil
}

func (r *fakeReviewRepo) SetReply(ctx context.Context, reviewID string, reply repositories.ReviewReply) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	review, ok := r.byID[reviewID]
	if !ok {
		return apperrors.NewNotFoundError("review not found")
	}
	body := reply.Body
	via := reply.RepliedVia
	by := reply.RepliedBy
	at := reply.PublishedAt
	review.ReplyBody = &body
	review.ReplyPublishedAt = &at
	review.RepliedBy = &by
	review.RepliedVia = &via
	review.Status = entities.ReviewStatusResponded
	review.AIDraft = nil
	return nil
}

func (r *fakeReviewRepo) SetAIDraft(ctx context.Context, reviewID, draft string, generatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	review, ok := r.byID[reviewID]
	if !ok {
		return apperrors.NewNotFoundError("review not found")
	}
	review.AIDraft = &draft
	review.AIDraftGeneratedAt = &generatedAt
	return nil
}

func (r *fakeReviewRepo) UpdateStatus(ctx context.Context, reviewID string, status entities.ReviewStatus, clearDraft bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	review, ok := r.byID[reviewID]
	if !ok {
		return apperrors.NewNotFoundError("review not found")
	}
	review.Status = status
	if clearDraft {
		review.AIDraft = nil
		review.AIDraftGeneratedAt = nil
	}
	return nil
}

func (r *fakeReviewRepo) add(review *entities.Review) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *review
	r.byKey[reviewKey(clone.SourceID, clone.PlatformReviewID)] = &clone
	r.byID[clone.ID] = &clone
}

func (r *fakeReviewRepo) get(id string) *entities.Review {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[id]
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

type fakeSourceRepo struct {
	mu      sync.Mutex
	sources map[string]*entities.ReviewSource
	order   []string
	active  map[string]entities.SourceStats
	errors  map[string]string
}

func newFakeSourceRepo(sources ...*entities.ReviewSource) *fakeSourceRepo {
	repo := &fakeSourceRepo{
		sources: map[string]*entities.ReviewSource{},
		active:  map[string]entities.SourceStats{},
		errors:  map[string]string{},
	}
	for _, source := range sources {
		repo.sources[source.ID] = source
		repo.order = append(repo.order, source.ID)
	}
	return repo
}

func (r *fakeSourceRepo) GetByID(ctx context.Context, id string) (*entities.ReviewSource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	source, ok := r.sources[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("source not found")
	}
	return source, nil
}

func (r *fakeSourceRepo) GetByIDs(ctx context.Context, ids []string) ([]*entities.ReviewSource, error) {
	var out []*entities.ReviewSource
	for _, id := range ids {
		if source, err := r.GetByID(ctx, id); err == nil {
			out = append(out, source)
		}
	}
	return out, nil
}

func (r *fakeSourceRepo) ListSyncable(ctx context.Context, limit int) ([]*entities.ReviewSource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.ReviewSource
	for _, id := range r.order {
		if len(out) >= limit {
			break
		}
		out = append(out, r.sources[id])
	}
	return out, nil
}

func (r *fakeSourceRepo) ListPending(ctx context.Context, limit int) ([]*entities.ReviewSource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.ReviewSource
	for _, id := range r.order {
		source := r.sources[id]
		if source.SyncStatus != entities.SyncStatusPending {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, source)
	}
	return out, nil
}

func (r *fakeSourceRepo) MarkActive(ctx context.Context, id string, stats entities.SourceStats, syncedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	source, ok := r.sources[id]
	if !ok {
		return apperrors.NewNotFoundError("source not found")
	}
	source.SyncStatus = entities.SyncStatusActive
	source.LastSyncedAt = &syncedAt
	source.TotalReviewCount = stats.TotalReviewCount
	source.AverageRating = stats.AverageRating
	r.active[id] = stats
	delete(r.errors, id)
	return nil
}

func (r *fakeSourceRepo) MarkError(ctx context.Context, id, message string, failedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	source, ok := r.sources[id]
	if !ok {
		return apperrors.NewNotFoundError("source not found")
	}
	source.SyncStatus = entities.SyncStatusError
	r.errors[id] = message
	return nil
}

type fakeIntegrationRepo struct {
	integrations map[string]*entities.PlatformIntegration
}

func (r *fakeIntegrationRepo) GetByExternalResource(ctx context.Context, platform entities.Platform, externalResourceID string) (*entities.PlatformIntegration, error) {
	integration, ok := r.integrations[string(platform)+"|"+externalResourceID]
	if !ok {
		return nil, apperrors.NewNotFoundError("integration not found")
	}
	return integration, nil
}

type fakeRuleRepo struct {
	rules []*entities.AlertRule
	err   error
}

func (r *fakeRuleRepo) ListActiveForLocation(ctx context.Context, orgID, locationID string) ([]*entities.AlertRule, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []*entities.AlertRule
	for _, rule := range r.rules {
		if rule.OrgID != orgID || !rule.Active {
			continue
		}
		if rule.LocationID != nil && *rule.LocationID != locationID {
			continue
		}
		out = append(out, rule)
	}
	return out, nil
}

type fakeConfigRepo struct {
	configs map[string]*entities.AutopilotConfig
}

func (r *fakeConfigRepo) GetByLocation(ctx context.Context, locationID string) (*entities.AutopilotConfig, error) {
	cfg, ok := r.configs[locationID]
	if !ok {
		return nil, apperrors.NewNotFoundError("no autopilot config")
	}
	return cfg, nil
}

type fakeLocationRepo struct {
	locations map[string]*entities.Location
}

func (r *fakeLocationRepo) GetByID(ctx context.Context, id string) (*entities.Location, error) {
	location, ok := r.locations[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("location not found")
	}
	return location, nil
}

type fakeQueueRepo struct {
	mu        sync.Mutex
	items     []*entities.ReplyQueueItem
	insertErr error
}

func (r *fakeQueueRepo) Insert(ctx context.Context, item *entities.ReplyQueueItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	clone := *item
	r.items = append(r.items, &clone)
	return nil
}

func (r *fakeQueueRepo) HasPendingAutopilot(ctx context.Context, reviewID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		if item.ReviewID == reviewID &&
			item.Source == entities.QueueSourceAIAutopilot &&
			item.Status == entities.QueueStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeQueueRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]*entities.ReplyQueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.ReplyQueueItem
	for _, item := range r.items {
		if !item.Due(now) {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		clone := *item
		out = append(out, &clone)
	}
	return out, nil
}

func (r *fakeQueueRepo) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	return r.setStatus(id, entities.QueueStatusSent, nil)
}

func (r *fakeQueueRepo) MarkFailed(ctx context.Context, id, errMsg string) error {
	return r.setStatus(id, entities.QueueStatusFailed, &errMsg)
}

func (r *fakeQueueRepo) Reschedule(ctx context.Context, id string, attempts int, nextAt time.Time, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		if item.ID == id {
			item.Attempts = attempts
			item.ScheduledFor = &nextAt
			item.LastError = &errMsg
			return nil
		}
	}
	return apperrors.NewNotFoundError("queue item not found")
}

func (r *fakeQueueRepo) setStatus(id string, status entities.QueueStatus, errMsg *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		if item.ID == id {
			item.Status = status
			if errMsg != nil {
				item.LastError = errMsg
			}
			return nil
		}
	}
	return apperrors.NewNotFoundError("queue item not found")
}

func (r *fakeQueueRepo) get(id string) *entities.ReplyQueueItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		if item.ID == id {
			return item
		}
	}
	return nil
}

type sentEmail struct {
	To      []string
	Subject string
	HTML    string
}

type fakeEmailSender struct {
	mu   sync.Mutex
	sent []sentEmail
	fail bool
}

func (s *fakeEmailSender) Send(ctx context.Context, to []string, subject, html string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return apperrors.NewExternalError("smtp down", nil)
	}
	s.sent = append(s.sent, sentEmail{To: to, Subject: subject, HTML: html})
	return nil
}

type fakeGenerator struct {
	draft string
	err   error
	calls int
}

func (g *fakeGenerator) GenerateReply(ctx context.Context, rc providers.ReplyContext) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	if g.draft != "" {
		return g.draft, nil
	}
	return fmt.Sprintf("Thank you %s!", rc.ReviewerName), nil
}

type fakePlatform struct {
	mu         sync.Mutex
	pages      map[string][]*providers.ReviewPage
	fetchErr   map[string]error
	replies    map[string]string
	replyErr   error
	noReplies  bool
	fetchCalls int
	replyCalls int
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		pages:    map[string][]*providers.ReviewPage{},
		fetchErr: map[string]error{},
		replies:  map[string]string{},
	}
}

func (p *fakePlatform) seed(resourceHandle string, pages ...*providers.ReviewPage) {
	for i, page := range pages {
		if i < len(pages)-1 {
			page.NextPageToken = fmt.Sprintf("page-%d", i+1)
		}
	}
	p.pages[resourceHandle] = pages
}

func (p *fakePlatform) FetchReviews(ctx context.Context, resourceHandle string, opts providers.FetchOptions) (*providers.ReviewPage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetchCalls++

	if err := p.fetchErr[resourceHandle]; err != nil {
		return nil, err
	}

	pages := p.pages[resourceHandle]
	if len(pages) == 0 {
		return &providers.ReviewPage{}, nil
	}

	index := 0
	if opts.PageToken != "" {
		fmt.Sscanf(opts.PageToken, "page-%d", &index)
	}
	if index >= len(pages) {
		return &providers.ReviewPage{}, nil
	}
	return pages[index], nil
}

func (p *fakePlatform) PostReply(ctx context.Context, replyResource, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replyCalls++
	if p.replyErr != nil {
		return p.replyErr
	}
	p.replies[replyResource] = text
	return nil
}

func (p *fakePlatform) SupportsReplies() bool {
	return !p.noReplies
}

type fakeResolver struct {
	platform providers.ReviewPlatform
	err      error
}

func (r *fakeResolver) ForPlatform(platform entities.Platform) (providers.ReviewPlatform, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.platform, nil
}

type fakeBus struct {
	mu     sync.Mutex
	events []*entities.ReviewEvent
}

func (b *fakeBus) Publish(ctx context.Context, channel string, event *entities.ReviewEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *fakeBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.ReviewEvent, error) {
	ch := make(chan *entities.ReviewEvent)
	close(ch)
	return ch, nil
}

func (b *fakeBus) Close() error { return nil }

type fakeSearchIndex struct {
	mu      sync.Mutex
	indexed []string
}

func (s *fakeSearchIndex) InitSchema(ctx context.Context) error { return nil }

func (s *fakeSearchIndex) Index(ctx context.Context, review *entities.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexed = append(s.indexed, review.ID)
	return nil
}

func intPtr(v int) *int { return &v }
