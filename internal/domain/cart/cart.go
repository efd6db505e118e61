// Package cart implements the per-user server cart.
package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

var (
	// ErrProductNotAvailable is returned when a product is missing, inactive
	// or not in the active state.
	ErrProductNotAvailable = errors.New("product not available")
	// ErrItemNotFound is returned when the cart has no line for the product.
	ErrItemNotFound = errors.New("cart item not found")
)

// Cart is the server-side cart of a logged-in user.
type Cart struct {
	ID        string
	UserID    int64
	Lines     []Line
	Total     decimal.Decimal
	UpdatedAt time.Time
}

// Line is one product in a cart.
type Line struct {
	ProductID string
	Quantity  int
	// PriceHasChanged stays set until the line is removed.
	PriceHasChanged bool
	// Product is the live catalog row, nil when the product no longer exists.
	Product *product.Product
}

// MergeItem is a line of an anonymous client cart.
type MergeItem struct {
	ProductID string
	Quantity  int
	// Price is the price the client last saw, if it sent one.
	Price *decimal.Decimal
}

// AddResult is returned by Service.AddItem.
type AddResult struct {
	Line  Line
	Total decimal.Decimal
}

// Store mutates a single cart while its row is locked.
type Store interface {
	// Lines returns the cart lines joined with their products.
	Lines(ctx context.Context) ([]Line, error)
	// AddQuantity inserts the line or adds qty to the existing one. The
	// price-changed flag is OR'd into the stored flag.
	AddQuantity(ctx context.Context, productID string, qty int, priceChanged bool) error
	// SetQuantity returns ErrItemNotFound when there is no such line.
	SetQuantity(ctx context.Context, productID string, qty int) error
	// DeleteLine returns ErrItemNotFound when there is no such line.
	DeleteLine(ctx context.Context, productID string) error
	DeleteLines(ctx context.Context) error
	SetTotal(ctx context.Context, total decimal.Decimal) error
}

// Repository persists carts.
type Repository interface {
	// GetOrCreate returns the user's cart, creating an empty one if needed.
	GetOrCreate(ctx context.Context, userID int64) (*Cart, error)
	// Update locks the cart and runs fn in a single transaction.
	Update(ctx context.Context, cartID string, fn func(ctx context.Context, s Store) error) error
}

// Total sums live product prices times quantities, rounded to cents. Lines
// whose product no longer exists contribute nothing.
func Total(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		if l.Product == nil {
			continue
		}
		total = total.Add(l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total.Round(2)
}

func findLine(lines []Line, productID string) (Line, bool) {
	for _, l := range lines {
		if l.ProductID == productID {
			return l, true
		}
	}
	return Line{}, false
}
