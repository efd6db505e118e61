package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/promo"
)

const (
	createOrderSQL = `INSERT INTO orders (id, user_id, items, subtotal, discount, total,
		payment_method, promo_code, buyer_email, buyer_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	countOrdersByUserAndPromoSQL = `SELECT COUNT(*) FROM orders WHERE user_id = $1 AND promo_code = $2`

	// Held until the transaction ends; concurrent checkouts of one user with
	// one code queue up here.
	lockUserPromoSQL = `SELECT pg_advisory_xact_lock(hashtextextended($1::bigint::text || ':' || $2::text, 0))`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. The snapshot items are serialized to JSON for
// storage in the JSONB column.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	_, err = r.pool.Exec(ctx, createOrderSQL, orderArgs(o, itemsJSON)...)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	return nil
}

// CreateWithinUserLimit counts the user's orders with the promo code and
// inserts o in one transaction holding an advisory lock on (user, code).
func (r *OrderRepository) CreateWithinUserLimit(ctx context.Context, o *order.Order, limit int) error {
	if o.UserID == nil || o.PromoCode == "" {
		return r.Create(ctx, o)
	}
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, lockUserPromoSQL, *o.UserID, o.PromoCode); err != nil {
			return fmt.Errorf("locking user promo: %w", err)
		}
		var used int
		if err := tx.QueryRow(ctx, countOrdersByUserAndPromoSQL, *o.UserID, o.PromoCode).Scan(&used); err != nil {
			return fmt.Errorf("counting user promo orders: %w", err)
		}
		if used >= limit {
			return promo.ErrUserLimitReached
		}
		_, err := tx.Exec(ctx, createOrderSQL, orderArgs(o, itemsJSON)...)
		return err
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, promo.ErrUserLimitReached):
		return promo.ErrUserLimitReached
	default:
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
}

func orderArgs(o *order.Order, itemsJSON []byte) []any {
	return []any{
		o.ID, o.UserID, itemsJSON, o.Subtotal, o.Discount, o.Total,
		o.PaymentMethod, o.PromoCode, o.BuyerEmail, o.BuyerName, o.CreatedAt,
	}
}

// CountByUserAndPromoCode counts the user's orders placed with the code.
func (r *OrderRepository) CountByUserAndPromoCode(ctx context.Context, userID int64, code string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countOrdersByUserAndPromoSQL, userID, code).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting orders for user %d and promo %q: %w", userID, code, err)
	}
	return n, nil
}
