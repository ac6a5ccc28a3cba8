package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Package is a purchasable credit bundle. Read-only to the ledger; edited
// by operators.
type Package struct {
	ID            uuid.UUID `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	CreditAmount  int64     `db:"credit_amount" json:"credit_amount"`
	Price         int64     `db:"price" json:"price"` // in minor units (cents)
	Currency      string    `db:"currency" json:"currency"`
	StripePriceID string    `db:"stripe_price_id" json:"stripe_price_id,omitempty"`
	IsActive      bool      `db:"is_active" json:"is_active"`
	SortOrder     int       `db:"sort_order" json:"sort_order"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
