package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

// Repository provides order persistence. Status changes go through
// Transition, which enforces the state machine in SQL so that concurrent
// webhook deliveries cannot double-apply a transition.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, o *Order) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	err := r.db.QueryRowContext(ctx2, `
		INSERT INTO credit_orders (id, user_id, package_id, credit_amount, price, currency, status)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, o.UserID, o.PackageID, o.CreditAmount, o.Price, o.Currency, StatusPending).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: insert order", ErrInternal)
	}
	o.Status = StatusPending

	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	return r.getBy(ctx, `SELECT * FROM credit_orders WHERE id = $1`, id)
}

func (r *Repository) GetBySessionID(ctx context.Context, sessionID string) (*Order, error) {
	return r.getBy(ctx, `SELECT * FROM credit_orders WHERE stripe_session_id = $1`, sessionID)
}

func (r *Repository) GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*Order, error) {
	return r.getBy(ctx, `SELECT * FROM credit_orders WHERE stripe_payment_intent_id = $1`, paymentIntentID)
}

func (r *Repository) getBy(ctx context.Context, query string, arg interface{}) (*Order, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var o Order
	err := r.db.GetContext(ctx2, &o, query, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("%w: get order", ErrInternal)
	}

	return &o, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Order, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}

	orders := make([]Order, 0)
	err := r.db.SelectContext(ctx2, &orders, `
		SELECT * FROM credit_orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list orders", ErrInternal)
	}

	return orders, nil
}

// SetSession stores the checkout session id once Stripe created it.
func (r *Repository) SetSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx2, `
		UPDATE credit_orders SET stripe_session_id = $2, updated_at = now() WHERE id = $1
	`, id, sessionID)
	if err != nil {
		return fmt.Errorf("%w: set session", ErrInternal)
	}

	return nil
}

// FailStale resolves pending orders created before cutoff to failed. An
// order whose Stripe call never produced a session gets no webhook, so the
// periodic sweep is the only thing that can close it.
func (r *Repository) FailStale(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE credit_orders
		SET status = $1, failed_at = now(), updated_at = now()
		WHERE status = $2 AND created_at < $3
	`, StatusFailed, StatusPending, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: fail stale orders", ErrInternal)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: rows affected", ErrInternal)
	}

	return rows, nil
}

// Transition moves an order from one status to another. The WHERE clause
// carries the source status, so a transition that lost the race (or was
// already applied by an earlier webhook delivery) affects zero rows and
// reports ErrInvalidTransition; callers decide whether that is a replay or
// a real violation.
func (r *Repository) Transition(ctx context.Context, id uuid.UUID, from, to Status, paymentIntentID string) error {
	if !from.CanTransition(to) {
		return ErrInvalidTransition
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var query string
	switch to {
	case StatusCompleted:
		query = `UPDATE credit_orders
			SET status = $3, completed_at = now(), updated_at = now(),
			    stripe_payment_intent_id = COALESCE(NULLIF($4, ''), stripe_payment_intent_id)
			WHERE id = $1 AND status = $2`
	case StatusFailed:
		query = `UPDATE credit_orders
			SET status = $3, failed_at = now(), updated_at = now(),
			    stripe_payment_intent_id = COALESCE(NULLIF($4, ''), stripe_payment_intent_id)
			WHERE id = $1 AND status = $2`
	case StatusRefunded:
		query = `UPDATE credit_orders
			SET status = $3, refunded_at = now(), updated_at = now(),
			    stripe_payment_intent_id = COALESCE(NULLIF($4, ''), stripe_payment_intent_id)
			WHERE id = $1 AND status = $2`
	default:
		return ErrInvalidTransition
	}

	result, err := r.db.ExecContext(ctx2, query, id, from, to, paymentIntentID)
	if err != nil {
		return fmt.Errorf("%w: transition order", ErrInternal)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return ErrInvalidTransition
	}

	return nil
}
