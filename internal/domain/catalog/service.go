package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Service exposes the package catalog to handlers and the order domain.
type Service struct {
	repo *Repository
}

func NewService(db *sqlx.DB) *Service {
	return &Service{repo: NewRepository(db)}
}

func (s *Service) Create(ctx context.Context, p *Package) error {
	if p.Currency == "" {
		p.Currency = "usd"
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Package, error) {
	return s.repo.GetByID(ctx, id)
}

// GetActiveByID returns the package only if it can currently be purchased.
func (s *Service) GetActiveByID(ctx context.Context, id uuid.UUID) (*Package, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, ErrPackageInactive
	}
	return p, nil
}

func (s *Service) ListActive(ctx context.Context) ([]Package, error) {
	return s.repo.ListActive(ctx)
}

func (s *Service) ListAll(ctx context.Context) ([]Package, error) {
	return s.repo.ListAll(ctx)
}

func (s *Service) Update(ctx context.Context, p *Package) error {
	return s.repo.Update(ctx, p)
}

func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.repo.Deactivate(ctx, id)
}
