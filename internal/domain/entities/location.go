package entities

import "time"

// Location is one physical business location managed by an agency org.
type Location struct {
	ID           string    `json:"id" db:"id"`
	OrgID        string    `json:"org_id" db:"org_id"`
	BusinessName string    `json:"business_name" db:"business_name"`
	Address      string    `json:"address" db:"address"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
