package promo

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

// Config holds evaluator settings.
type Config struct {
	// Precision is the number of decimal places money amounts are rounded to.
	Precision int32
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{Precision: 2}
}

// ProductLookup resolves products for category scope checks.
type ProductLookup interface {
	GetByIDs(ctx context.Context, ids []string) ([]product.Product, error)
}

// Request is the order context a promo code is evaluated against.
type Request struct {
	Code     string
	Items    []Item
	Subtotal decimal.Decimal
	// UserID is nil for anonymous buyers; per-user limits are skipped then.
	UserID *int64
}

// Result is the outcome of an evaluation.
type Result struct {
	// Applied is false when the request carried no code.
	Applied    bool
	PromoID    string
	Code       string
	Discount   decimal.Decimal
	FinalTotal decimal.Decimal
	// PerUserLimit echoes the promo limit so the order can be persisted
	// under the same bound.
	PerUserLimit *int
}

// Evaluator checks promo eligibility and computes discounts. It never
// mutates promo state.
type Evaluator struct {
	promos   Finder
	products ProductLookup
	usage    UsageCounter
	cfg      Config
	now      func() time.Time
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(cfg Config, promos Finder, products ProductLookup, usage UsageCounter) *Evaluator {
	if cfg.Precision <= 0 {
		cfg.Precision = DefaultConfig().Precision
	}
	return &Evaluator{
		promos:   promos,
		products: products,
		usage:    usage,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Evaluate applies the promo named by req.Code to the request.
//
// Rule failures are returned as *Error alongside a Result that carries a zero
// discount and the unchanged subtotal. Any other error is an infrastructure
// failure.
func (e *Evaluator) Evaluate(ctx context.Context, req Request) (Result, error) {
	subtotal := req.Subtotal.Round(e.cfg.Precision)
	res := Result{
		Discount:   decimal.Zero,
		FinalTotal: subtotal,
	}

	code := NormalizeCode(req.Code)
	if code == "" {
		return res, nil
	}
	res.Code = code

	p, err := e.promos.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return res, ErrNotFound
		}
		return res, errors.Wrap(err, "find promo")
	}

	if err := e.check(ctx, p, code, req); err != nil {
		return res, err
	}

	raw, err := ComputeDiscount(p, req.Subtotal)
	if err != nil {
		return res, err
	}

	discount := raw.Round(e.cfg.Precision)
	return Result{
		Applied:      true,
		PromoID:      p.ID,
		Code:         code,
		Discount:     discount,
		FinalTotal:   req.Subtotal.Sub(discount).Round(e.cfg.Precision),
		PerUserLimit: p.PerUserLimit,
	}, nil
}

// check runs the eligibility rules in order; the first failure wins.
func (e *Evaluator) check(ctx context.Context, p *Promo, code string, req Request) error {
	if !p.IsActive {
		return ErrInactive
	}

	now := e.now()
	if p.StartDate != nil && now.Before(*p.StartDate) {
		return ErrNotStarted
	}
	if p.EndDate != nil && now.After(*p.EndDate) {
		return ErrExpired
	}

	if p.UsageLimit != nil && p.UsageCount >= *p.UsageLimit {
		return ErrUsageLimitReached
	}

	if p.PerUserLimit != nil && req.UserID != nil {
		used, err := e.usage.CountByUserAndPromoCode(ctx, *req.UserID, code)
		if err != nil {
			return errors.Wrap(err, "count user promo usage")
		}
		if used >= *p.PerUserLimit {
			return ErrUserLimitReached
		}
	}

	if p.MinOrderAmount != nil && req.Subtotal.LessThan(*p.MinOrderAmount) {
		return &Error{Kind: KindMinOrderAmountNotMet, MinAmount: *p.MinOrderAmount}
	}

	var catalog map[string]product.Product
	if needsCatalog(p) && len(req.Items) > 0 {
		ids := make([]string, 0, len(req.Items))
		for _, item := range req.Items {
			ids = append(ids, item.ProductID)
		}
		products, err := e.products.GetByIDs(ctx, ids)
		if err != nil {
			return errors.Wrap(err, "get products")
		}
		catalog = product.Index(products)
	}
	if !InScope(p, req.Items, catalog) {
		return ErrNotApplicableToItems
	}

	return nil
}
