// Package promo implements promo code rules: eligibility, discount computation
// and the admin lifecycle of promo records.
package promo

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Type enumerates the supported promo discount strategies.
type Type string

const (
	// TypePercentage discounts a percentage of the subtotal, optionally capped
	// by MaxDiscount.
	TypePercentage Type = "percentage"
	// TypeFixed discounts a fixed amount, never more than the subtotal.
	TypeFixed Type = "fixed"
)

// Promo is a discount rule identified by a unique code.
type Promo struct {
	ID             string
	Code           string
	Title          string
	Type           Type
	Value          decimal.Decimal
	MaxDiscount    *decimal.Decimal
	MinOrderAmount *decimal.Decimal
	StartDate      *time.Time
	EndDate        *time.Time
	IsActive       bool
	UsageLimit     *int
	UsageCount     int
	PerUserLimit   *int
	AllProducts    bool
	AllCategories  bool
	ProductIDs     []string
	CategoryIDs    []string
	ShowInHome     bool
	Image          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Item is a cart line as seen by the evaluator.
type Item struct {
	ProductID string
	Quantity  int
}

// Finder looks up promos by their normalized code.
// It returns ErrNotFound when no promo carries the code.
type Finder interface {
	FindByCode(ctx context.Context, code string) (*Promo, error)
}

// UsageCounter reports how many orders a user already placed with a code.
type UsageCounter interface {
	CountByUserAndPromoCode(ctx context.Context, userID int64, code string) (int, error)
}

// Repository is the persistence contract for promos.
type Repository interface {
	Finder
	GetByID(ctx context.Context, id string) (*Promo, error)
	List(ctx context.Context) ([]Promo, error)
	ListHome(ctx context.Context) ([]Promo, error)
	Create(ctx context.Context, p *Promo) error
	Update(ctx context.Context, p *Promo) error
	Delete(ctx context.Context, id string) error

	// IncrementUsage atomically consumes one use of the promo. It returns
	// ErrUsageLimitReached when the usage limit is already exhausted.
	IncrementUsage(ctx context.Context, id string) error
	// DecrementUsage gives back one use consumed by IncrementUsage.
	DecrementUsage(ctx context.Context, id string) error
}

// NormalizeCode trims and upper-cases a promo code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
