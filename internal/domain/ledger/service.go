package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// service implements the Service interface
type service struct {
	repo *Repository
}

// NewService creates a new ledger service
func NewService(db *sqlx.DB) Service {
	return &service{
		repo: NewRepository(db),
	}
}

func (s *service) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.GetBalance(ctx, userID)
}

func (s *service) HasSufficient(ctx context.Context, userID uuid.UUID, amount int64) (bool, error) {
	if amount <= 0 {
		return false, ErrInvalidAmount
	}

	balance, err := s.repo.GetBalance(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance >= amount, nil
}

func (s *service) Add(ctx context.Context, userID uuid.UUID, amount int64, txType TxType, reason string, ref Reference) (uuid.UUID, error) {
	return s.repo.Add(ctx, userID, amount, txType, reason, ref)
}

func (s *service) Consume(ctx context.Context, userID uuid.UUID, amount int64, reason string, ref Reference) (int64, bool, error) {
	return s.repo.Consume(ctx, userID, amount, reason, ref)
}

func (s *service) HasTransactionForReference(ctx context.Context, txType TxType, ref Reference) (bool, error) {
	return s.repo.HasTransactionForReference(ctx, txType, ref)
}

func (s *service) GetAccount(ctx context.Context, userID uuid.UUID) (*Account, error) {
	return s.repo.GetAccount(ctx, userID)
}

func (s *service) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 20
	}

	return s.repo.ListTransactions(ctx, userID, Pagination{Limit: limit, Offset: offset})
}

func (s *service) CountTransactions(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountTransactions(ctx, userID)
}

func (s *service) SearchTransactions(ctx context.Context, filters SearchFilters) ([]Transaction, error) {
	return s.repo.SearchTransactions(ctx, filters)
}
