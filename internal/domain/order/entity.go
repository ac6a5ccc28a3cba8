package order

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Status represents the order lifecycle state
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

// CanTransition encodes the order state machine: pending resolves to
// completed or failed, and only a completed order can be refunded. Failed
// and refunded are terminal.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusPending:
		return to == StatusCompleted || to == StatusFailed
	case StatusCompleted:
		return to == StatusRefunded
	}
	return false
}

// IsTerminal reports whether no payment-state transition can leave s.
func (s Status) IsTerminal() bool {
	return s == StatusFailed || s == StatusRefunded
}

// Order records one purchase attempt for a credit package. The credit
// amount and price are snapshotted at creation so later package edits do
// not change what was bought.
type Order struct {
	ID                    uuid.UUID      `db:"id" json:"id"`
	UserID                uuid.UUID      `db:"user_id" json:"user_id"`
	PackageID             uuid.UUID      `db:"package_id" json:"package_id"`
	CreditAmount          int64          `db:"credit_amount" json:"credit_amount"`
	Price                 int64          `db:"price" json:"price"`
	Currency              string         `db:"currency" json:"currency"`
	StripeSessionID       sql.NullString `db:"stripe_session_id" json:"-"`
	StripePaymentIntentID sql.NullString `db:"stripe_payment_intent_id" json:"-"`
	Status                Status         `db:"status" json:"status"`
	CreatedAt             time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time      `db:"updated_at" json:"updated_at"`
	CompletedAt           sql.NullTime   `db:"completed_at" json:"-"`
	FailedAt              sql.NullTime   `db:"failed_at" json:"-"`
	RefundedAt            sql.NullTime   `db:"refunded_at" json:"-"`
}
