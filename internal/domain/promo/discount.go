package promo

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

var hundred = decimal.NewFromInt(100)

// ComputeDiscount returns the raw, unrounded discount the promo grants on the
// given subtotal.
//
// Percentage discounts are capped only by MaxDiscount: a percentage above 100
// without a cap discounts more than the subtotal. Fixed discounts never exceed
// the subtotal.
func ComputeDiscount(p *Promo, subtotal decimal.Decimal) (decimal.Decimal, error) {
	switch p.Type {
	case TypePercentage:
		amount := subtotal.Mul(p.Value).Div(hundred)
		if p.MaxDiscount != nil && amount.GreaterThan(*p.MaxDiscount) {
			amount = *p.MaxDiscount
		}
		return amount, nil
	case TypeFixed:
		return decimal.Min(p.Value, subtotal), nil
	default:
		return decimal.Zero, errors.Errorf("unsupported promo type: %q", p.Type)
	}
}

// InScope reports whether at least one item falls into the promo's product or
// category scope. The all_products and all_categories flags satisfy the scope
// unconditionally. Items whose product is missing from products never match
// by category.
func InScope(p *Promo, items []Item, products map[string]product.Product) bool {
	if p.AllProducts || p.AllCategories {
		return true
	}
	if len(p.ProductIDs) == 0 && len(p.CategoryIDs) == 0 {
		return false
	}

	productSet := make(map[string]struct{}, len(p.ProductIDs))
	for _, id := range p.ProductIDs {
		productSet[id] = struct{}{}
	}
	categorySet := make(map[string]struct{}, len(p.CategoryIDs))
	for _, id := range p.CategoryIDs {
		categorySet[id] = struct{}{}
	}

	for _, item := range items {
		if _, ok := productSet[item.ProductID]; ok {
			return true
		}
		prod, ok := products[item.ProductID]
		if !ok || prod.CategoryID == "" {
			continue
		}
		if _, ok := categorySet[prod.CategoryID]; ok {
			return true
		}
	}
	return false
}

// needsCatalog reports whether InScope has to look at product categories.
func needsCatalog(p *Promo) bool {
	return !p.AllProducts && !p.AllCategories && len(p.CategoryIDs) > 0
}
