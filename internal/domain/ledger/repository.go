package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const queryTimeout = 3 * time.Second

// Repository provides balance and transaction-history operations. All
// balance mutations go through Add/Consume; nothing else writes the
// credit_accounts table, which keeps the history replayable into the
// balance.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Add credits (or debits, for refund/admin corrections) an account and
// appends the matching transaction row in one database transaction. The
// account row is created lazily. When a reference is supplied and a
// transaction of the same type already carries it, the call is an idempotent
// replay: the existing transaction id is returned and nothing changes.
func (r *Repository) Add(ctx context.Context, userID uuid.UUID, amount int64, txType TxType, reason string, ref Reference) (uuid.UUID, error) {
	if !txType.Valid() || txType == TxTypeConsumption {
		return uuid.Nil, ErrInvalidTxType
	}
	if amount == 0 {
		return uuid.Nil, ErrInvalidAmount
	}
	if amount < 0 && txType != TxTypeRefund && txType != TxTypeAdminAdjustment {
		return uuid.Nil, ErrInvalidAmount
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	acct, err := r.lockAccount(ctx2, tx, userID)
	if err != nil {
		return uuid.Nil, err
	}

	if existing, found, err := r.findByReference(ctx2, tx, userID, txType, ref); err != nil {
		return uuid.Nil, err
	} else if found {
		if existing.Amount != amount {
			return uuid.Nil, ErrReferenceConflict
		}
		return existing.ID, nil
	}

	newBalance := acct.Balance + amount
	if newBalance < 0 {
		return uuid.Nil, ErrInsufficientCredits
	}

	purchased := int64(0)
	if txType == TxTypePurchase {
		purchased = amount
	}
	if err := r.updateAccount(ctx2, tx, userID, newBalance, purchased, 0); err != nil {
		return uuid.Nil, err
	}

	txID, err := r.insertTransaction(ctx2, tx, userID, amount, newBalance, txType, reason, ref)
	if err != nil {
		return uuid.Nil, err
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("%w: commit tx", ErrInternal)
	}

	return txID, nil
}

// Consume atomically debits an account and returns the post-debit balance.
// The balance check and the decrement happen under a row lock on the
// account, so two concurrent consumes of 80 against a balance of 100
// serialize into exactly one success. Insufficient balance is reported as
// (balance, false, nil) with no rows written; errors are infrastructure
// failures only. A consumption already recorded for the same reference is
// treated as an idempotent replay and reports true with that debit's
// balance snapshot.
func (r *Repository) Consume(ctx context.Context, userID uuid.UUID, amount int64, reason string, ref Reference) (int64, bool, error) {
	if amount <= 0 {
		return 0, false, ErrInvalidAmount
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return 0, false, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	acct, err := r.lockAccount(ctx2, tx, userID)
	if err != nil {
		return 0, false, err
	}

	if existing, found, err := r.findByReference(ctx2, tx, userID, TxTypeConsumption, ref); err != nil {
		return 0, false, err
	} else if found {
		if existing.Amount != -amount {
			return 0, false, ErrReferenceConflict
		}
		return existing.BalanceAfter, true, nil
	}

	if acct.Balance < amount {
		// Rollback discards the lazily created account row, so a denied
		// consume leaves no trace at all.
		return acct.Balance, false, nil
	}

	newBalance := acct.Balance - amount
	if err := r.updateAccount(ctx2, tx, userID, newBalance, 0, amount); err != nil {
		return 0, false, err
	}

	if _, err := r.insertTransaction(ctx2, tx, userID, -amount, newBalance, TxTypeConsumption, reason, ref); err != nil {
		return 0, false, err
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("%w: commit tx", ErrInternal)
	}

	return newBalance, true, nil
}

// GetBalance returns the balance, with a never-created account reading as 0.
func (r *Repository) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var balance int64
	err := r.db.GetContext(ctx2, &balance, `SELECT balance FROM credit_accounts WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: get balance", ErrInternal)
	}

	return balance, nil
}

// GetAccount returns the account row, or a zero-valued account if none
// exists yet.
func (r *Repository) GetAccount(ctx context.Context, userID uuid.UUID) (*Account, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var acct Account
	err := r.db.GetContext(ctx2, &acct, `
		SELECT user_id, balance, total_purchased, total_consumed, created_at, updated_at
		FROM credit_accounts
		WHERE user_id = $1
	`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &Account{UserID: userID}, nil
		}
		return nil, fmt.Errorf("%w: get account", ErrInternal)
	}

	return &acct, nil
}

// HasTransactionForReference reports whether a transaction of the given type
// already carries the reference. Callers use it to de-duplicate retries
// after a timeout.
func (r *Repository) HasTransactionForReference(ctx context.Context, txType TxType, ref Reference) (bool, error) {
	if ref.IsZero() {
		return false, nil
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var exists bool
	err := r.db.GetContext(ctx2, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM credit_transactions
			WHERE tx_type = $1 AND reference_type = $2 AND reference_id = $3
		)
	`, string(txType), ref.Type, ref.ID)
	if err != nil {
		return false, fmt.Errorf("%w: check reference", ErrInternal)
	}

	return exists, nil
}

// CountTransactions returns the total history size for a user, for
// pagination metadata.
func (r *Repository) CountTransactions(ctx context.Context, userID uuid.UUID) (int, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var total int
	err := r.db.GetContext(ctx2, &total, `SELECT COUNT(*) FROM credit_transactions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: count transactions", ErrInternal)
	}

	return total, nil
}

func (r *Repository) ListTransactions(ctx context.Context, userID uuid.UUID, pagination Pagination) ([]Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	limit := pagination.Limit
	if limit <= 0 {
		limit = 20
	}

	transactions := make([]Transaction, 0)
	err := r.db.SelectContext(ctx2, &transactions, `
		SELECT id, user_id, amount, balance_after, tx_type, reason, reference_type, reference_id, created_at
		FROM credit_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, pagination.Offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list transactions", ErrInternal)
	}

	return transactions, nil
}

func (r *Repository) SearchTransactions(ctx context.Context, filters SearchFilters) ([]Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	base := `
		SELECT id, user_id, amount, balance_after, tx_type, reason, reference_type, reference_id, created_at
		FROM credit_transactions
		WHERE 1=1`
	args := make([]interface{}, 0, 8)
	idx := 1

	if filters.UserID != nil && *filters.UserID != "" {
		base += fmt.Sprintf(" AND user_id = $%d", idx)
		args = append(args, *filters.UserID)
		idx++
	}
	if filters.TxType != nil && *filters.TxType != "" {
		base += fmt.Sprintf(" AND tx_type = $%d", idx)
		args = append(args, *filters.TxType)
		idx++
	}
	if filters.DateFrom != nil {
		base += fmt.Sprintf(" AND created_at >= $%d", idx)
		args = append(args, *filters.DateFrom)
		idx++
	}
	if filters.DateTo != nil {
		base += fmt.Sprintf(" AND created_at <= $%d", idx)
		args = append(args, *filters.DateTo)
		idx++
	}
	if filters.ReferenceType != nil && *filters.ReferenceType != "" {
		base += fmt.Sprintf(" AND reference_type = $%d", idx)
		args = append(args, *filters.ReferenceType)
		idx++
	}
	if filters.ReferenceID != nil && *filters.ReferenceID != "" {
		base += fmt.Sprintf(" AND reference_id = $%d", idx)
		args = append(args, *filters.ReferenceID)
		idx++
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}

	base = strings.TrimSpace(base) + fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, filters.Offset)

	transactions := make([]Transaction, 0)
	if err := r.db.SelectContext(ctx2, &transactions, base, args...); err != nil {
		return nil, fmt.Errorf("%w: search transactions", ErrInternal)
	}

	return transactions, nil
}

// lockAccount creates the account row if absent and takes a FOR UPDATE lock
// on it. Every writer passes through this lock, which is what serializes
// concurrent mutations per account. Cross-account calls do not contend.
func (r *Repository) lockAccount(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (*Account, error) {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO credit_accounts (user_id, balance, total_purchased, total_consumed)
		VALUES ($1, 0, 0, 0)
		ON CONFLICT (user_id) DO NOTHING
	`, userID); err != nil {
		return nil, fmt.Errorf("%w: ensure account", ErrInternal)
	}

	var acct Account
	err := tx.GetContext(ctx, &acct, `
		SELECT user_id, balance, total_purchased, total_consumed, created_at, updated_at
		FROM credit_accounts
		WHERE user_id = $1
		FOR UPDATE
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: lock account row", ErrInternal)
	}

	return &acct, nil
}

func (r *Repository) updateAccount(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, balance, purchasedDelta, consumedDelta int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE credit_accounts
		SET balance = $2,
		    total_purchased = total_purchased + $3,
		    total_consumed = total_consumed + $4,
		    updated_at = now()
		WHERE user_id = $1
	`, userID, balance, purchasedDelta, consumedDelta)
	if err != nil {
		return fmt.Errorf("%w: update account", ErrInternal)
	}
	return nil
}

func (r *Repository) insertTransaction(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount, balanceAfter int64, txType TxType, reason string, ref Reference) (uuid.UUID, error) {
	if strings.TrimSpace(reason) == "" {
		reason = "credit balance adjustment"
	}

	var refType, refID interface{}
	if !ref.IsZero() {
		refType, refID = ref.Type, ref.ID
	}

	var id uuid.UUID
	err := tx.QueryRowContext(ctx, `
		INSERT INTO credit_transactions (
			id, user_id, amount, balance_after, tx_type, reason, reference_type, reference_id
		)
		VALUES (
			gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7
		)
		RETURNING id
	`, userID, amount, balanceAfter, string(txType), reason, refType, refID).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return uuid.Nil, ErrReferenceConflict
		}
		return uuid.Nil, fmt.Errorf("%w: insert transaction", ErrInternal)
	}

	return id, nil
}

// findByReference looks up, inside the current transaction, an existing
// ledger row of the given type for the reference. Holding the account lock
// makes the check-then-insert race free per account.
func (r *Repository) findByReference(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, txType TxType, ref Reference) (*Transaction, bool, error) {
	if ref.IsZero() {
		return nil, false, nil
	}

	var t Transaction
	err := tx.GetContext(ctx, &t, `
		SELECT id, user_id, amount, balance_after, tx_type, reason, reference_type, reference_id, created_at
		FROM credit_transactions
		WHERE user_id = $1 AND tx_type = $2 AND reference_type = $3 AND reference_id = $4
		LIMIT 1
	`, userID, string(txType), ref.Type, ref.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: check reference", ErrInternal)
	}

	return &t, true, nil
}
