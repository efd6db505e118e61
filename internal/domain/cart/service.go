package cart

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

// Service implements cart operations. Every mutation recomputes the total
// from live catalog prices inside the same transaction.
type Service struct {
	carts    Repository
	products product.Repository
}

// NewService creates a cart Service.
func NewService(carts Repository, products product.Repository) *Service {
	return &Service{carts: carts, products: products}
}

// Get returns the user's cart. A stored total that drifted from live prices
// is refreshed.
func (s *Service) Get(ctx context.Context, userID int64) (*Cart, error) {
	c, err := s.carts.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	if Total(c.Lines).Equal(c.Total) {
		return c, nil
	}

	err = s.carts.Update(ctx, c.ID, func(ctx context.Context, st Store) error {
		lines, total, err := recompute(ctx, st)
		if err != nil {
			return err
		}
		c.Lines, c.Total = lines, total
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("refresh cart total: %w", err)
	}
	return c, nil
}

// AddItem puts quantity units of the product into the cart. A quantity
// below one defaults to one.
func (s *Service) AddItem(ctx context.Context, userID int64, productID string, quantity int) (*AddResult, error) {
	if quantity < 1 {
		quantity = 1
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, ErrProductNotAvailable
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	if !p.Purchasable() {
		return nil, ErrProductNotAvailable
	}

	c, err := s.carts.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	var res AddResult
	err = s.carts.Update(ctx, c.ID, func(ctx context.Context, st Store) error {
		if err := st.AddQuantity(ctx, productID, quantity, false); err != nil {
			return err
		}
		lines, total, err := recompute(ctx, st)
		if err != nil {
			return err
		}
		res.Line, _ = findLine(lines, productID)
		res.Total = total
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("add item: %w", err)
	}
	return &res, nil
}

// UpdateQuantity sets the line quantity, clamped to at least one.
func (s *Service) UpdateQuantity(ctx context.Context, userID int64, productID string, quantity int) (decimal.Decimal, error) {
	if quantity < 1 {
		quantity = 1
	}
	return s.mutate(ctx, userID, func(ctx context.Context, st Store) error {
		return st.SetQuantity(ctx, productID, quantity)
	})
}

// RemoveItem deletes the line for the product.
func (s *Service) RemoveItem(ctx context.Context, userID int64, productID string) (decimal.Decimal, error) {
	return s.mutate(ctx, userID, func(ctx context.Context, st Store) error {
		return st.DeleteLine(ctx, productID)
	})
}

// Clear empties the cart. The cart itself is kept.
func (s *Service) Clear(ctx context.Context, userID int64) error {
	_, err := s.mutate(ctx, userID, func(ctx context.Context, st Store) error {
		return st.DeleteLines(ctx)
	})
	return err
}

// Merge folds an anonymous client cart into the user's cart. Products that no
// longer exist are skipped; unavailable ones are kept so the cart can report
// them. Quantities are added to existing lines and a line is flagged when the
// client saw a different price.
func (s *Service) Merge(ctx context.Context, userID int64, items []MergeItem) (decimal.Decimal, error) {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}

	var catalog map[string]product.Product
	if len(ids) > 0 {
		fetched, err := s.products.GetByIDs(ctx, ids)
		if err != nil {
			return decimal.Zero, fmt.Errorf("get products: %w", err)
		}
		catalog = product.Index(fetched)
	}

	return s.mutate(ctx, userID, func(ctx context.Context, st Store) error {
		for _, item := range items {
			p, ok := catalog[item.ProductID]
			if !ok {
				continue
			}
			changed := item.Price != nil && !item.Price.Equal(p.Price)
			if err := st.AddQuantity(ctx, item.ProductID, max(1, item.Quantity), changed); err != nil {
				return err
			}
		}
		return nil
	})
}

// mutate runs fn against the user's cart and recomputes the total.
func (s *Service) mutate(ctx context.Context, userID int64, fn func(ctx context.Context, st Store) error) (decimal.Decimal, error) {
	c, err := s.carts.GetOrCreate(ctx, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get cart: %w", err)
	}

	var total decimal.Decimal
	err = s.carts.Update(ctx, c.ID, func(ctx context.Context, st Store) error {
		if err := fn(ctx, st); err != nil {
			return err
		}
		_, t, err := recompute(ctx, st)
		total = t
		return err
	})
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return decimal.Zero, ErrItemNotFound
		}
		return decimal.Zero, fmt.Errorf("update cart: %w", err)
	}
	return total, nil
}

func recompute(ctx context.Context, st Store) ([]Line, decimal.Decimal, error) {
	lines, err := st.Lines(ctx)
	if err != nil {
		return nil, decimal.Zero, err
	}
	total := Total(lines)
	if err := st.SetTotal(ctx, total); err != nil {
		return nil, decimal.Zero, err
	}
	return lines, total, nil
}
