package entities

import "time"

// AutopilotConfig controls auto-drafting and auto-sending of review
// replies for one location.
type AutopilotConfig struct {
	ID               string    `json:"id" db:"id"`
	LocationID       string    `json:"location_id" db:"location_id"`
	Enabled          bool      `json:"enabled" db:"enabled"`
	AutoReplyRatings []int     `json:"auto_reply_ratings" db:"auto_reply_ratings"`
	RequireApproval  bool      `json:"require_approval" db:"require_approval"`
	DelayMinMinutes  int       `json:"delay_min_minutes" db:"delay_min_minutes"`
	DelayMaxMinutes  int       `json:"delay_max_minutes" db:"delay_max_minutes"`
	Tone             string    `json:"tone" db:"tone"`
	BusinessContext  string    `json:"business_context" db:"business_context"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// EligibleRatings returns the ratings eligible for auto-drafting,
// defaulting to {4, 5} when none are configured.
func (c *AutopilotConfig) EligibleRatings() []int {
	if len(c.AutoReplyRatings) == 0 {
		return []int{4, 5}
	}
	return c.AutoReplyRatings
}

// AllowsRating reports whether a review rating is eligible for
// auto-drafting. Unrated reviews are never eligible.
func (c *AutopilotConfig) AllowsRating(rating *int) bool {
	if rating == nil {
		return false
	}
	for _, r := range c.EligibleRatings() {
		if r == *rating {
			return true
		}
	}
	return false
}
