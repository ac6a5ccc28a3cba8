package ledger

import (
	"time"

	"github.com/google/uuid"
)

// TxType defines supported credit transaction types.
type TxType string

const (
	TxTypePurchase        TxType = "purchase"
	TxTypeConsumption     TxType = "consumption"
	TxTypeRefund          TxType = "refund"
	TxTypeAdminAdjustment TxType = "admin_adjustment"
)

// Valid reports whether the transaction type is one of the known values.
func (t TxType) Valid() bool {
	switch t {
	case TxTypePurchase, TxTypeConsumption, TxTypeRefund, TxTypeAdminAdjustment:
		return true
	}
	return false
}

// Reference annotates a transaction with the entity that caused it (an
// order, a generation job). It is an opaque id+type pair, not a foreign key;
// the ledger never dereferences it.
type Reference struct {
	Type string
	ID   string
}

// IsZero reports whether no reference was provided.
func (r Reference) IsZero() bool {
	return r.Type == "" && r.ID == ""
}

// Account is the per-user balance row. Created lazily on first grant,
// mutated only through Add and Consume.
type Account struct {
	UserID         uuid.UUID `db:"user_id" json:"user_id"`
	Balance        int64     `db:"balance" json:"balance"`
	TotalPurchased int64     `db:"total_purchased" json:"total_purchased"`
	TotalConsumed  int64     `db:"total_consumed" json:"total_consumed"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction is an immutable ledger row. Amount is signed: positive for
// grants and refunds, negative for consumption. BalanceAfter snapshots the
// account balance at the instant of commit.
type Transaction struct {
	ID            uuid.UUID `db:"id" json:"id"`
	UserID        uuid.UUID `db:"user_id" json:"user_id"`
	Amount        int64     `db:"amount" json:"amount"`
	BalanceAfter  int64     `db:"balance_after" json:"balance_after"`
	TxType        string    `db:"tx_type" json:"tx_type"`
	Reason        string    `db:"reason" json:"reason"`
	ReferenceType *string   `db:"reference_type" json:"reference_type,omitempty"`
	ReferenceID   *string   `db:"reference_id" json:"reference_id,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Pagination controls simple list pagination.
type Pagination struct {
	Limit  int
	Offset int
}

// SearchFilters provides admin-facing transaction filtering.
type SearchFilters struct {
	UserID        *string
	TxType        *string
	DateFrom      *time.Time
	DateTo        *time.Time
	ReferenceType *string
	ReferenceID   *string
	Limit         int
	Offset        int
}
