package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/promo"
)

const (
	promoColumns = `p.id, p.code, p.title, p.type, p.value, p.max_discount, p.min_order_amount,
		p.start_date, p.end_date, p.is_active, p.usage_limit, p.usage_count, p.per_user_limit,
		p.all_products, p.all_categories, p.show_in_home, p.image, p.created_at, p.updated_at,
		COALESCE((SELECT array_agg(pp.product_id ORDER BY pp.product_id)
			FROM promo_products pp WHERE pp.promo_id = p.id), '{}'),
		COALESCE((SELECT array_agg(pc.category_id ORDER BY pc.category_id)
			FROM promo_categories pc WHERE pc.promo_id = p.id), '{}')`

	findPromoByCodeSQL = `SELECT ` + promoColumns + ` FROM promos p WHERE p.code = $1`

	getPromoByIDSQL = `SELECT ` + promoColumns + ` FROM promos p WHERE p.id = $1`

	listPromosSQL = `SELECT ` + promoColumns + ` FROM promos p ORDER BY p.created_at DESC, p.id`

	listHomePromosSQL = `SELECT ` + promoColumns + ` FROM promos p
		WHERE p.is_active AND p.show_in_home ORDER BY p.created_at DESC, p.id`

	insertPromoSQL = `INSERT INTO promos (id, code, title, type, value, max_discount, min_order_amount,
		start_date, end_date, is_active, usage_limit, usage_count, per_user_limit,
		all_products, all_categories, show_in_home, image, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	updatePromoSQL = `UPDATE promos SET code = $2, title = $3, type = $4, value = $5,
		max_discount = $6, min_order_amount = $7, start_date = $8, end_date = $9,
		is_active = $10, usage_limit = $11, per_user_limit = $12, all_products = $13,
		all_categories = $14, show_in_home = $15, image = $16, updated_at = $17
		WHERE id = $1`

	deletePromoSQL = `DELETE FROM promos WHERE id = $1`

	deletePromoProductsSQL   = `DELETE FROM promo_products WHERE promo_id = $1`
	deletePromoCategoriesSQL = `DELETE FROM promo_categories WHERE promo_id = $1`

	insertPromoProductsSQL = `INSERT INTO promo_products (promo_id, product_id)
		SELECT $1, unnest($2::text[]) ON CONFLICT DO NOTHING`
	insertPromoCategoriesSQL = `INSERT INTO promo_categories (promo_id, category_id)
		SELECT $1, unnest($2::text[]) ON CONFLICT DO NOTHING`

	incrementPromoUsageSQL = `UPDATE promos SET usage_count = usage_count + 1
		WHERE id = $1 AND (usage_limit IS NULL OR usage_count < usage_limit)`

	decrementPromoUsageSQL = `UPDATE promos SET usage_count = usage_count - 1
		WHERE id = $1 AND usage_count > 0`
)

var _ promo.Repository = (*PromoRepository)(nil)

var errUnknownScope = &promo.ValidationError{Field: "products", Reason: "unknown product or category id"}

// PromoRepository implements promo.Repository backed by PostgreSQL.
type PromoRepository struct {
	pool *pgxpool.Pool
}

// NewPromoRepository returns a PromoRepository that uses the given pool.
func NewPromoRepository(pool *pgxpool.Pool) *PromoRepository {
	return &PromoRepository{pool: pool}
}

// FindByCode looks up a promo by its stored (uppercase) code.
// Returns promo.ErrNotFound when no promo carries the code.
func (r *PromoRepository) FindByCode(ctx context.Context, code string) (*promo.Promo, error) {
	return r.getOne(ctx, findPromoByCodeSQL, code)
}

// GetByID returns a promo by its identifier.
func (r *PromoRepository) GetByID(ctx context.Context, id string) (*promo.Promo, error) {
	return r.getOne(ctx, getPromoByIDSQL, id)
}

func (r *PromoRepository) getOne(ctx context.Context, sql string, arg string) (*promo.Promo, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting promo %q: %w", arg, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPromo)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promo.ErrNotFound
		}
		return nil, fmt.Errorf("getting promo %q: %w", arg, err)
	}
	return &p, nil
}

// List returns all promos, newest first.
func (r *PromoRepository) List(ctx context.Context) ([]promo.Promo, error) {
	return r.list(ctx, listPromosSQL)
}

// ListHome returns active promos flagged for the home page, newest first.
func (r *PromoRepository) ListHome(ctx context.Context) ([]promo.Promo, error) {
	return r.list(ctx, listHomePromosSQL)
}

func (r *PromoRepository) list(ctx context.Context, sql string) ([]promo.Promo, error) {
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("listing promos: %w", err)
	}
	promos, err := pgx.CollectRows(rows, scanPromo)
	if err != nil {
		return nil, fmt.Errorf("listing promos: %w", err)
	}
	return promos, nil
}

// Create inserts the promo with its product and category associations.
func (r *PromoRepository) Create(ctx context.Context, p *promo.Promo) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertPromoSQL,
			p.ID, p.Code, p.Title, string(p.Type), p.Value,
			nullDecimal(p.MaxDiscount), nullDecimal(p.MinOrderAmount),
			p.StartDate, p.EndDate, p.IsActive, p.UsageLimit, p.UsageCount, p.PerUserLimit,
			p.AllProducts, p.AllCategories, p.ShowInHome, p.Image, p.CreatedAt, p.UpdatedAt,
		); err != nil {
			return err
		}
		return insertPromoScope(ctx, tx, p)
	})
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return promo.ErrCodeTaken
	case isForeignKeyViolation(err):
		return errUnknownScope
	default:
		return fmt.Errorf("creating promo %q: %w", p.Code, err)
	}
}

// Update overwrites the promo row and replaces its associations. The usage
// counter is left untouched.
func (r *PromoRepository) Update(ctx context.Context, p *promo.Promo) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, updatePromoSQL,
			p.ID, p.Code, p.Title, string(p.Type), p.Value,
			nullDecimal(p.MaxDiscount), nullDecimal(p.MinOrderAmount),
			p.StartDate, p.EndDate, p.IsActive, p.UsageLimit, p.PerUserLimit,
			p.AllProducts, p.AllCategories, p.ShowInHome, p.Image, p.UpdatedAt,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return promo.ErrNotFound
		}
		if _, err := tx.Exec(ctx, deletePromoProductsSQL, p.ID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, deletePromoCategoriesSQL, p.ID); err != nil {
			return err
		}
		return insertPromoScope(ctx, tx, p)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, promo.ErrNotFound):
		return promo.ErrNotFound
	case isUniqueViolation(err):
		return promo.ErrCodeTaken
	case isForeignKeyViolation(err):
		return errUnknownScope
	default:
		return fmt.Errorf("updating promo %q: %w", p.ID, err)
	}
}

func insertPromoScope(ctx context.Context, tx pgx.Tx, p *promo.Promo) error {
	if len(p.ProductIDs) > 0 {
		if _, err := tx.Exec(ctx, insertPromoProductsSQL, p.ID, p.ProductIDs); err != nil {
			return fmt.Errorf("linking products: %w", err)
		}
	}
	if len(p.CategoryIDs) > 0 {
		if _, err := tx.Exec(ctx, insertPromoCategoriesSQL, p.ID, p.CategoryIDs); err != nil {
			return fmt.Errorf("linking categories: %w", err)
		}
	}
	return nil
}

// Delete removes the promo. Associations cascade.
func (r *PromoRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deletePromoSQL, id)
	if err != nil {
		return fmt.Errorf("deleting promo %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return promo.ErrNotFound
	}
	return nil
}

// IncrementUsage consumes one use in a single conditional UPDATE, so
// concurrent checkouts can never push usage_count past usage_limit.
func (r *PromoRepository) IncrementUsage(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, incrementPromoUsageSQL, id)
	if err != nil {
		return fmt.Errorf("incrementing usage for promo %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return promo.ErrUsageLimitReached
	}
	return nil
}

// DecrementUsage gives back one use.
func (r *PromoRepository) DecrementUsage(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, decrementPromoUsageSQL, id); err != nil {
		return fmt.Errorf("decrementing usage for promo %q: %w", id, err)
	}
	return nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func scanPromo(row pgx.CollectableRow) (promo.Promo, error) {
	var (
		p              promo.Promo
		typ            string
		maxDiscount    decimal.NullDecimal
		minOrderAmount decimal.NullDecimal
		startDate      *time.Time
		endDate        *time.Time
		usageLimit     *int
		perUserLimit   *int
	)
	err := row.Scan(
		&p.ID, &p.Code, &p.Title, &typ, &p.Value, &maxDiscount, &minOrderAmount,
		&startDate, &endDate, &p.IsActive, &usageLimit, &p.UsageCount, &perUserLimit,
		&p.AllProducts, &p.AllCategories, &p.ShowInHome, &p.Image, &p.CreatedAt, &p.UpdatedAt,
		&p.ProductIDs, &p.CategoryIDs,
	)
	p.Type = promo.Type(typ)
	if maxDiscount.Valid {
		p.MaxDiscount = &maxDiscount.Decimal
	}
	if minOrderAmount.Valid {
		p.MinOrderAmount = &minOrderAmount.Decimal
	}
	p.StartDate = startDate
	p.EndDate = endDate
	p.UsageLimit = usageLimit
	p.PerUserLimit = perUserLimit
	return p, err
}
