package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const queryTimeout = 10 * time.Second

// CreditSummary aggregates the ledger across all accounts.
type CreditSummary struct {
	TotalAccounts      int64 `db:"total_accounts" json:"total_accounts"`
	TotalBalance       int64 `db:"total_balance" json:"total_balance"`
	TotalPurchased     int64 `db:"total_purchased" json:"total_purchased"`
	TotalConsumed      int64 `db:"total_consumed" json:"total_consumed"`
	AccountsWithCredit int64 `db:"accounts_with_credit" json:"accounts_with_credit"`
}

// PackageSales is the completed-order revenue per package.
type PackageSales struct {
	PackageID      string `db:"package_id" json:"package_id"`
	PackageName    string `db:"package_name" json:"package_name"`
	OrdersCount    int64  `db:"orders_count" json:"orders_count"`
	CreditsGranted int64  `db:"credits_granted" json:"credits_granted"`
	Revenue        int64  `db:"revenue" json:"revenue"`
	Currency       string `db:"currency" json:"currency"`
	RefundedCount  int64  `db:"refunded_count" json:"refunded_count"`
}

// DailyConsumption is credits burned per day, newest first.
type DailyConsumption struct {
	Day      time.Time `db:"day" json:"day"`
	Credits  int64     `db:"credits" json:"credits"`
	Debits   int64     `db:"debits" json:"debits"`
	Accounts int64     `db:"accounts" json:"accounts"`
}

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreditSummary(ctx context.Context) (*CreditSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var s CreditSummary
	err := r.db.GetContext(ctx, &s, `
		SELECT
			COUNT(*)                                   AS total_accounts,
			COALESCE(SUM(balance), 0)                  AS total_balance,
			COALESCE(SUM(total_purchased), 0)          AS total_purchased,
			COALESCE(SUM(total_consumed), 0)           AS total_consumed,
			COUNT(*) FILTER (WHERE balance > 0)        AS accounts_with_credit
		FROM credit_accounts`)
	if err != nil {
		return nil, fmt.Errorf("credit summary: %w", err)
	}
	return &s, nil
}

func (r *Repository) PackageSales(ctx context.Context) ([]PackageSales, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	sales := []PackageSales{}
	err := r.db.SelectContext(ctx, &sales, `
		SELECT
			p.id                                                         AS package_id,
			p.name                                                       AS package_name,
			COUNT(o.id) FILTER (WHERE o.status = 'completed')            AS orders_count,
			COALESCE(SUM(o.credit_amount) FILTER (WHERE o.status = 'completed'), 0) AS credits_granted,
			COALESCE(SUM(o.price) FILTER (WHERE o.status = 'completed'), 0)         AS revenue,
			p.currency                                                   AS currency,
			COUNT(o.id) FILTER (WHERE o.status = 'refunded')             AS refunded_count
		FROM credit_packages p
		LEFT JOIN credit_orders o ON o.package_id = p.id
		GROUP BY p.id, p.name, p.currency
		ORDER BY revenue DESC, p.name`)
	if err != nil {
		return nil, fmt.Errorf("package sales: %w", err)
	}
	return sales, nil
}

func (r *Repository) DailyConsumption(ctx context.Context, since time.Time) ([]DailyConsumption, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows := []DailyConsumption{}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT
			date_trunc('day', created_at)  AS day,
			COALESCE(SUM(-amount), 0)      AS credits,
			COUNT(*)                       AS debits,
			COUNT(DISTINCT user_id)        AS accounts
		FROM credit_transactions
		WHERE tx_type = 'consumption' AND created_at >= $1
		GROUP BY day
		ORDER BY day DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("daily consumption: %w", err)
	}
	return rows, nil
}
