package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// State is the catalog lifecycle state of a product.
type State string

const (
	StateActive   State = "active"
	StateInactive State = "inactive"
	StateDraft    State = "draft"
	StateOutStock State = "out_stock"
	StateDeleted  State = "deleted"
)

// Product represents a catalog item available for purchase.
type Product struct {
	ID         string
	Title      string
	Price      decimal.Decimal
	State      State
	IsActive   bool
	CategoryID string
	Stock      int
}

// Purchasable reports whether the product may be put into a cart.
func (p *Product) Purchasable() bool {
	return p.IsActive && p.State == StateActive
}

// Repository defines read operations for the product catalog.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}

// Index maps products by ID.
func Index(products []Product) map[string]Product {
	m := make(map[string]Product, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	return m
}
