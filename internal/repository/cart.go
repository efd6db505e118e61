package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/product"
)

const (
	insertCartSQL = `INSERT INTO carts (id, user_id) VALUES ($1, $2) ON CONFLICT (user_id) DO NOTHING`

	getCartByUserSQL = `SELECT id, user_id, total, updated_at FROM carts WHERE user_id = $1`

	lockCartSQL = `SELECT id FROM carts WHERE id = $1 FOR UPDATE`

	listCartLinesSQL = `SELECT l.product_id, l.quantity, l.price_has_changed,
		p.id, p.title, p.price, p.state, p.is_active, COALESCE(p.category_id, ''), p.stock
		FROM cart_lines l JOIN products p ON p.id = l.product_id
		WHERE l.cart_id = $1 ORDER BY l.created_at, l.product_id`

	upsertCartLineSQL = `INSERT INTO cart_lines (cart_id, product_id, quantity, price_has_changed)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cart_id, product_id) DO UPDATE SET
			quantity = cart_lines.quantity + EXCLUDED.quantity,
			price_has_changed = cart_lines.price_has_changed OR EXCLUDED.price_has_changed`

	setCartLineQuantitySQL = `UPDATE cart_lines SET quantity = $3 WHERE cart_id = $1 AND product_id = $2`

	deleteCartLineSQL = `DELETE FROM cart_lines WHERE cart_id = $1 AND product_id = $2`

	deleteCartLinesSQL = `DELETE FROM cart_lines WHERE cart_id = $1`

	setCartTotalSQL = `UPDATE carts SET total = $2, updated_at = NOW() WHERE id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// GetOrCreate returns the user's cart with its lines. Concurrent first calls
// for the same user converge on one row through the user_id unique index.
func (r *CartRepository) GetOrCreate(ctx context.Context, userID int64) (*cart.Cart, error) {
	if _, err := r.pool.Exec(ctx, insertCartSQL, uuid.New().String(), userID); err != nil {
		return nil, fmt.Errorf("creating cart for user %d: %w", userID, err)
	}

	var c cart.Cart
	if err := r.pool.QueryRow(ctx, getCartByUserSQL, userID).Scan(&c.ID, &c.UserID, &c.Total, &c.UpdatedAt); err != nil {
		return nil, fmt.Errorf("getting cart for user %d: %w", userID, err)
	}

	lines, err := listCartLines(ctx, r.pool, c.ID)
	if err != nil {
		return nil, err
	}
	c.Lines = lines
	return &c, nil
}

// Update locks the cart row and runs fn in one transaction. An error from fn
// rolls everything back and is returned unchanged.
func (r *CartRepository) Update(ctx context.Context, cartID string, fn func(ctx context.Context, s cart.Store) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var id string
		if err := tx.QueryRow(ctx, lockCartSQL, cartID).Scan(&id); err != nil {
			return fmt.Errorf("locking cart %q: %w", cartID, err)
		}
		return fn(ctx, &cartStore{q: tx, cartID: cartID})
	})
}

type cartStore struct {
	q      querier
	cartID string
}

func (s *cartStore) Lines(ctx context.Context) ([]cart.Line, error) {
	return listCartLines(ctx, s.q, s.cartID)
}

func (s *cartStore) AddQuantity(ctx context.Context, productID string, qty int, priceChanged bool) error {
	if _, err := s.q.Exec(ctx, upsertCartLineSQL, s.cartID, productID, qty, priceChanged); err != nil {
		return fmt.Errorf("upserting cart line %q: %w", productID, err)
	}
	return nil
}

func (s *cartStore) SetQuantity(ctx context.Context, productID string, qty int) error {
	tag, err := s.q.Exec(ctx, setCartLineQuantitySQL, s.cartID, productID, qty)
	if err != nil {
		return fmt.Errorf("setting cart line quantity %q: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrItemNotFound
	}
	return nil
}

func (s *cartStore) DeleteLine(ctx context.Context, productID string) error {
	tag, err := s.q.Exec(ctx, deleteCartLineSQL, s.cartID, productID)
	if err != nil {
		return fmt.Errorf("deleting cart line %q: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrItemNotFound
	}
	return nil
}

func (s *cartStore) DeleteLines(ctx context.Context) error {
	if _, err := s.q.Exec(ctx, deleteCartLinesSQL, s.cartID); err != nil {
		return fmt.Errorf("deleting cart lines: %w", err)
	}
	return nil
}

func (s *cartStore) SetTotal(ctx context.Context, total decimal.Decimal) error {
	if _, err := s.q.Exec(ctx, setCartTotalSQL, s.cartID, total); err != nil {
		return fmt.Errorf("setting cart total: %w", err)
	}
	return nil
}

func listCartLines(ctx context.Context, q querier, cartID string) ([]cart.Line, error) {
	rows, err := q.Query(ctx, listCartLinesSQL, cartID)
	if err != nil {
		return nil, fmt.Errorf("listing cart lines: %w", err)
	}
	lines, err := pgx.CollectRows(rows, scanCartLine)
	if err != nil {
		return nil, fmt.Errorf("listing cart lines: %w", err)
	}
	return lines, nil
}

func scanCartLine(row pgx.CollectableRow) (cart.Line, error) {
	var (
		l     cart.Line
		p     product.Product
		state string
	)
	err := row.Scan(
		&l.ProductID, &l.Quantity, &l.PriceHasChanged,
		&p.ID, &p.Title, &p.Price, &state, &p.IsActive, &p.CategoryID, &p.Stock,
	)
	p.State = product.State(state)
	l.Product = &p
	return l, err
}
