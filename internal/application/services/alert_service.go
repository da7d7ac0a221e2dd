package services

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"

	"github.com/garrettjsmith/localpresence/internal/domain/entities"
	"github.com/garrettjsmith/localpresence/internal/domain/providers"
	"github.com/garrettjsmith/localpresence/internal/domain/repositories"
	"github.com/garrettjsmith/localpresence/pkg/utils"
)

// AlertService evaluates notification rules against newly synced reviews
// and dispatches alert emails.
type AlertService struct {
	ruleRepo     repositories.AlertRuleRepository
	locationRepo repositories.LocationRepository
	sender       providers.EmailSender
}

// NewAlertService creates a new alert service
func NewAlertService(
	ruleRepo repositories.AlertRuleRepository,
	locationRepo repositories.LocationRepository,
	sender providers.EmailSender,
) *AlertService {
	return &AlertService{
		ruleRepo:     ruleRepo,
		locationRepo: locationRepo,
		sender:       sender,
	}
}

// Evaluate runs every applicable rule against the review and emails the
// rule's recipients for each match. Delivery is fire-and-forget: a failed
// send is logged and never blocks the sync pipeline. Returns the number
// of rules that fired.
func (s *AlertService) Evaluate(ctx context.Context, review *entities.Review) (int, error) {
	rules, err := s.ruleRepo.ListActiveForLocation(ctx, review.OrgID, review.LocationID)
	if err != nil {
		return 0, fmt.Errorf("failed to load alert rules: %w", err)
	}

	businessName := s.businessName(ctx, review.LocationID)

	fired := 0
	for _, rule := range rules {
		if !ruleMatches(rule, review) {
			continue
		}
		fired++

		if s.sender == nil || len(rule.NotifyEmails) == 0 {
			continue
		}

		subject, body := buildAlertEmail(rule, review, businessName)
		if err := s.sender.Send(ctx, rule.NotifyEmails, subject, body); err != nil {
			log.Printf("Failed to send %s alert for review %s: %v", rule.RuleType, review.ID, err)
		}
	}

	return fired, nil
}

func (s *AlertService) businessName(ctx context.Context, locationID string) string {
	if s.locationRepo == nil {
		return locationID
	}
	location, err := s.locationRepo.GetByID(ctx, locationID)
	if err != nil {
		return locationID
	}
	return location.BusinessName
}

func ruleMatches(rule *entities.AlertRule, review *entities.Review) bool {
	switch rule.RuleType {
	case entities.AlertRuleNewReview:
		return true
	case entities.AlertRuleNegativeReview:
		return review.Rating != nil && *review.Rating <= rule.Threshold()
	case entities.AlertRuleKeywordMatch:
		keywords := utils.NormalizeKeywords(rule.Config.Keywords)
		return len(keywords) > 0 && utils.ContainsAnyKeyword(review.Body, keywords)
	default:
		return false
	}
}

func buildAlertEmail(rule *entities.AlertRule, review *entities.Review, businessName string) (string, string) {
	rating := "unrated"
	stars := ""
	if review.Rating != nil {
		rating = fmt.Sprintf("%d/5", *review.Rating)
		stars = strings.Repeat("★", *review.Rating) + strings.Repeat("☆", 5-*review.Rating)
	}

	reviewer := review.ReviewerName
	if reviewer == "" {
		reviewer = "Anonymous"
	}

	var subject string
	switch rule.RuleType {
	case entities.AlertRuleNegativeReview:
		subject = fmt.Sprintf("Negative review (%s) for %s", rating, businessName)
	case entities.AlertRuleKeywordMatch:
		subject = fmt.Sprintf("Keyword alert for %s", businessName)
	default:
		subject = fmt.Sprintf("New review for %s", businessName)
	}

	body := fmt.Sprintf(`<h2>%s</h2>
<p><strong>%s</strong> left a %s review on %s</p>
<p>%s</p>
<blockquote>%s</blockquote>
<p>Published %s</p>`,
		html.EscapeString(subject),
		html.EscapeString(reviewer),
		rating,
		html.EscapeString(string(review.Platform)),
		stars,
		html.EscapeString(review.Body),
		review.PublishedAt.Format("January 2, 2006 3:04 PM"),
	)

	return subject, body
}
