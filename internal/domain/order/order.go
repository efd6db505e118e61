package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Order is an immutable record of a completed checkout.
type Order struct {
	ID            string
	UserID        *int64
	Items         []SnapshotItem
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	Total         decimal.Decimal
	PaymentMethod string
	PromoCode     string
	BuyerEmail    string
	BuyerName     string
	CreatedAt     time.Time
}

// SnapshotItem is a product as it was priced when the order was created.
type SnapshotItem struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// ProductIDs returns the IDs of the ordered products.
func (o *Order) ProductIDs() []string {
	ids := make([]string, len(o.Items))
	for i, item := range o.Items {
		ids[i] = item.ID
	}
	return ids
}

// Item is a requested order line.
type Item struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Customer is the contact and shipping information supplied at checkout.
type Customer struct {
	Email      string
	Name       string
	Phone      string
	Address    string
	City       string
	PostalCode string
}

// ProfilePatch overwrites only the non-nil user profile fields.
type ProfilePatch struct {
	Name       *string
	Phone      *string
	Address    *string
	City       *string
	PostalCode *string
}

// Empty reports whether the patch changes nothing.
func (p ProfilePatch) Empty() bool {
	return p.Name == nil && p.Phone == nil && p.Address == nil && p.City == nil && p.PostalCode == nil
}

// ProfilePatch builds a patch from the non-empty customer fields.
func (c Customer) ProfilePatch() ProfilePatch {
	opt := func(s string) *string {
		if s == "" {
			return nil
		}
		return &s
	}
	return ProfilePatch{
		Name:       opt(c.Name),
		Phone:      opt(c.Phone),
		Address:    opt(c.Address),
		City:       opt(c.City),
		PostalCode: opt(c.PostalCode),
	}
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, order *Order) error
	// CreateWithinUserLimit persists the order only while the user has fewer
	// than limit orders with its promo code, serialized per user and code.
	// It returns promo.ErrUserLimitReached otherwise.
	CreateWithinUserLimit(ctx context.Context, order *Order, limit int) error
	CountByUserAndPromoCode(ctx context.Context, userID int64, code string) (int, error)
}
