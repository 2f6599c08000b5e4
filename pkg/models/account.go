package models

import (
	"time"

	"github.com/google/uuid"
)

// Account is an authenticated principal. Accounts authenticate with a
// bearer API key; only the bcrypt hash and a lookup prefix are stored.
// Premium is the capability flag the eligibility check consults — payment
// handling lives outside this service.
type Account struct {
	ID         uuid.UUID  `db:"id"           json:"id"`
	Email      string     `db:"email"        json:"email"`
	Name       string     `db:"name"         json:"name"`
	KeyHash    string     `db:"key_hash"     json:"-"`
	KeyPrefix  string     `db:"key_prefix"   json:"-"`
	Premium    bool       `db:"premium"      json:"premium"`
	LastSeenAt *time.Time `db:"last_seen_at" json:"last_seen_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at"   json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"   json:"updated_at"`
}

// Principal is the identity attached to a request after authentication.
type Principal struct {
	AccountID uuid.UUID
	KeyPrefix string
	Premium   bool
}
