package entities

import "time"

// AlertRuleType identifies what condition a notification rule checks.
type AlertRuleType string

const (
	AlertRuleNewReview      AlertRuleType = "new_review"
	AlertRuleNegativeReview AlertRuleType = "negative_review"
	AlertRuleKeywordMatch   AlertRuleType = "keyword_match"
)

// DefaultNegativeThreshold is the rating cutoff used when a
// negative_review rule does not configure one.
const DefaultNegativeThreshold = 3

// AlertRuleConfig is the type-specific rule configuration blob.
type AlertRuleConfig struct {
	Threshold *int     `json:"threshold,omitempty"`
	Keywords  []string `json:"keywords,omitempty"`
}

// AlertRule is a notification rule scoped to an organization and
// optionally narrowed to one location. A nil LocationID applies the
// rule to every location in the org.
type AlertRule struct {
	ID           string          `json:"id" db:"id"`
	OrgID        string          `json:"org_id" db:"org_id"`
	LocationID   *string         `json:"location_id,omitempty" db:"location_id"`
	RuleType     AlertRuleType   `json:"rule_type" db:"rule_type"`
	Config       AlertRuleConfig `json:"config" db:"config"`
	NotifyEmails []string        `json:"notify_emails" db:"notify_emails"`
	Active       bool            `json:"active" db:"active"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// Threshold returns the configured negative-review cutoff or the default.
func (r *AlertRule) Threshold() int {
	if r.Config.Threshold != nil {
		return *r.Config.Threshold
	}
	return DefaultNegativeThreshold
}
