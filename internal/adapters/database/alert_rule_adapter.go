package database

import (
	"context"
	"encoding/json"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/lib/pq"

	"github.com/garrettjsmith/localpresence/internal/domain/entities"
	"github.com/garrettjsmith/localpresence/internal/domain/repositories"
	"github.com/garrettjsmith/localpresence/internal/infrastructure/clients/postgres"
	apperrors "github.com/garrettjsmith/localpresence/pkg/errors"
)

// AlertRuleAdapter implements the AlertRuleRepository interface
type AlertRuleAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewAlertRuleAdapter creates a new alert rule adapter
func NewAlertRuleAdapter(client *postgres.Client) repositories.AlertRuleRepository {
	return &AlertRuleAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// ListActiveForLocation returns the org's active rules that apply to the
// location: org-wide rules (NULL location_id) plus location-scoped ones
func (a *AlertRuleAdapter) ListActiveForLocation(ctx context.Context, orgID, locationID string) ([]*entities.AlertRule, error) {
	query, args, err := a.db.Select(
		"id", "org_id", "location_id", "rule_type", "config",
		"notify_emails", "active", "created_at", "updated_at",
	).From("alert_rules").
		Where(
			goqu.Ex{"org_id": orgID, "active": true},
			goqu.Or(
				goqu.I("location_id").IsNull(),
				goqu.I("location_id").Eq(locationID),
			),
		).
		Order(goqu.I("created_at").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list alert rules", err)
	}
	defer rows.Close()

	var rules []*entities.AlertRule
	for rows.Next() {
		rule := &entities.AlertRule{}
		var config []byte

		err := rows.Scan(
			&rule.ID,
			&rule.OrgID,
			&rule.LocationID,
			&rule.RuleType,
			&config,
			pq.Array(&rule.NotifyEmails),
			&rule.Active,
			&rule.CreatedAt,
			&rule.UpdatedAt,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan alert rule", err)
		}

		if len(config) > 0 {
			if err := json.Unmarshal(config, &rule.Config); err != nil {
				return nil, apperrors.NewInternalError("failed to unmarshal rule config", err)
			}
		}

		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate alert rules", err)
	}

	return rules, nil
}
