package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/business"
)

const getBusinessSQL = `SELECT name, currency, tax_rate, email, phone, address FROM business WHERE id = 1`

var _ business.Repository = (*BusinessRepository)(nil)

// BusinessRepository implements business.Repository backed by PostgreSQL.
type BusinessRepository struct {
	pool *pgxpool.Pool
}

// NewBusinessRepository returns a BusinessRepository that uses the given pool.
func NewBusinessRepository(pool *pgxpool.Pool) *BusinessRepository {
	return &BusinessRepository{pool: pool}
}

// Get returns the business row or business.ErrNotFound.
func (r *BusinessRepository) Get(ctx context.Context) (*business.Config, error) {
	var c business.Config
	err := r.pool.QueryRow(ctx, getBusinessSQL).Scan(&c.Name, &c.Currency, &c.TaxRate, &c.Email, &c.Phone, &c.Address)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, business.ErrNotFound
		}
		return nil, fmt.Errorf("getting business: %w", err)
	}
	return &c, nil
}
