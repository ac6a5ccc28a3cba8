package ledger

import (
	"context"

	"github.com/google/uuid"
)

// Service interface defines the credit ledger operations
type Service interface {
	// GetBalance returns the current balance; an account that was never
	// created reads as 0, not as an error.
	GetBalance(ctx context.Context, userID uuid.UUID) (int64, error)

	// HasSufficient is a non-mutating pre-check. It is advisory only: the
	// balance may drop between this call and a later Consume, so the
	// authoritative gate is always the Consume result.
	HasSufficient(ctx context.Context, userID uuid.UUID, amount int64) (bool, error)

	// Add grants credits (negative amounts are accepted only for
	// refund/admin_adjustment corrections) and returns the id of the
	// created transaction.
	Add(ctx context.Context, userID uuid.UUID, amount int64, txType TxType, reason string, ref Reference) (uuid.UUID, error)

	// Consume atomically debits amount credits and returns the balance
	// recorded by the debit. (balance, false, nil) means insufficient
	// balance, with no state changed; a non-nil error means the
	// persistence layer failed and nothing committed.
	Consume(ctx context.Context, userID uuid.UUID, amount int64, reason string, ref Reference) (int64, bool, error)

	// HasTransactionForReference lets callers de-duplicate retried debits
	// ("has this generation job already been charged?").
	HasTransactionForReference(ctx context.Context, txType TxType, ref Reference) (bool, error)

	// GetAccount returns the full account row for reporting surfaces.
	GetAccount(ctx context.Context, userID uuid.UUID) (*Account, error)

	// ListTransactions returns paginated transaction history for a user
	ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Transaction, error)

	// CountTransactions returns the total history size for a user
	CountTransactions(ctx context.Context, userID uuid.UUID) (int, error)

	// SearchTransactions returns filtered transactions (for admin use)
	SearchTransactions(ctx context.Context, filters SearchFilters) ([]Transaction, error)
}
