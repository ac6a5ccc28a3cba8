package catalog

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

// Repository provides credit package catalog access
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, p *Package) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	err := r.db.QueryRowContext(ctx2, `
		INSERT INTO credit_packages (id, name, credit_amount, price, currency, stripe_price_id, is_active, sort_order)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, p.Name, p.CreditAmount, p.Price, p.Currency, p.StripePriceID, p.IsActive, p.SortOrder).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: insert package", ErrInternal)
	}

	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Package, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var p Package
	err := r.db.GetContext(ctx2, &p, `SELECT * FROM credit_packages WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPackageNotFound
		}
		return nil, fmt.Errorf("%w: get package", ErrInternal)
	}

	return &p, nil
}

// ListActive returns the storefront view, ordered for display.
func (r *Repository) ListActive(ctx context.Context) ([]Package, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	packages := make([]Package, 0)
	err := r.db.SelectContext(ctx2, &packages, `
		SELECT * FROM credit_packages
		WHERE is_active = true
		ORDER BY sort_order ASC, price ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: list packages", ErrInternal)
	}

	return packages, nil
}

// ListAll returns every package, including deactivated ones (admin view).
func (r *Repository) ListAll(ctx context.Context) ([]Package, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	packages := make([]Package, 0)
	err := r.db.SelectContext(ctx2, &packages, `
		SELECT * FROM credit_packages
		ORDER BY sort_order ASC, price ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: list packages", ErrInternal)
	}

	return packages, nil
}

func (r *Repository) Update(ctx context.Context, p *Package) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE credit_packages
		SET name = $2, credit_amount = $3, price = $4, currency = $5,
		    stripe_price_id = $6, is_active = $7, sort_order = $8, updated_at = now()
		WHERE id = $1
	`, p.ID, p.Name, p.CreditAmount, p.Price, p.Currency, p.StripePriceID, p.IsActive, p.SortOrder)
	if err != nil {
		return fmt.Errorf("%w: update package", ErrInternal)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return ErrPackageNotFound
	}

	return nil
}

// Deactivate takes a package off the storefront. Orders keep referencing it,
// so packages are never deleted.
func (r *Repository) Deactivate(ctx context.Context, id uuid.UUID) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE credit_packages SET is_active = false, updated_at = now() WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("%w: deactivate package", ErrInternal)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return ErrPackageNotFound
	}

	return nil
}
