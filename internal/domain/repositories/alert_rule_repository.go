package repositories

import (
	"context"

	"github.com/garrettjsmith/localpresence/internal/domain/entities"
)

// AlertRuleRepository defines the interface for notification rules.
type AlertRuleRepository interface {
	// ListActiveForLocation returns active rules for the org whose
	// location_id is NULL (org-wide) or equals locationID.
	ListActiveForLocation(ctx context.Context, orgID, locationID string) ([]*entities.AlertRule, error)
}
