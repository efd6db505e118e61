package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/sale"
)

const createSaleSQL = `INSERT INTO sales (id, payment_method, source, total, tax, product_ids, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

var _ sale.Repository = (*SaleRepository)(nil)

// SaleRepository implements sale.Repository backed by PostgreSQL.
type SaleRepository struct {
	pool *pgxpool.Pool
}

// NewSaleRepository returns a SaleRepository that uses the given pool.
func NewSaleRepository(pool *pgxpool.Pool) *SaleRepository {
	return &SaleRepository{pool: pool}
}

// Create persists a sale.
func (r *SaleRepository) Create(ctx context.Context, s *sale.Sale) error {
	ids := s.ProductIDs
	if ids == nil {
		ids = []string{}
	}
	_, err := r.pool.Exec(ctx, createSaleSQL,
		s.ID, s.PaymentMethod, string(s.Source), s.Total, s.Tax, ids, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating sale %q: %w", s.ID, err)
	}
	return nil
}
