package entities

import "time"

// APIKey is a bearer credential scoped to one organization. Only the
// SHA-256 of the token is stored.
type APIKey struct {
	ID        string     `json:"id" db:"id"`
	OrgID     string     `json:"org_id" db:"org_id"`
	Label     string     `json:"label" db:"label"`
	TokenHash string     `json:"-" db:"token_hash"`
	RevokedAt *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}
