// Package sale records completed sales for bookkeeping, both web orders and
// point-of-sale tickets.
package sale

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/business"
)

// Source tells where a sale happened.
type Source string

const (
	SourceWeb  Source = "WEB"
	SourceCaja Source = "CAJA"
)

var (
	ErrInvalidSource         = errors.New("sale source must be WEB or CAJA")
	ErrPaymentMethodRequired = errors.New("payment method required")
	ErrNegativeTotal         = errors.New("sale total must not be negative")
)

// Sale is a recorded sale. Products are referenced by ID, not snapshotted.
type Sale struct {
	ID            string
	PaymentMethod string
	Source        Source
	Total         decimal.Decimal
	Tax           decimal.Decimal
	ProductIDs    []string
	CreatedAt     time.Time
}

// Input is the data needed to record a sale.
type Input struct {
	PaymentMethod string
	Source        Source
	Total         decimal.Decimal
	ProductIDs    []string
}

// Repository persists sales.
type Repository interface {
	Create(ctx context.Context, s *Sale) error
}

// Service records sales and computes the tax they include.
type Service struct {
	sales          Repository
	business       business.Repository
	defaultTaxRate decimal.Decimal
	now            func() time.Time
}

// NewService creates a sale Service. defaultTaxRate is used while no
// business row exists.
func NewService(sales Repository, biz business.Repository, defaultTaxRate decimal.Decimal) *Service {
	return &Service{
		sales:          sales,
		business:       biz,
		defaultTaxRate: defaultTaxRate,
		now:            time.Now,
	}
}

// Record validates and stores a sale.
func (s *Service) Record(ctx context.Context, in Input) (*Sale, error) {
	if in.Source != SourceWeb && in.Source != SourceCaja {
		return nil, ErrInvalidSource
	}
	if in.PaymentMethod == "" {
		return nil, ErrPaymentMethodRequired
	}
	if in.Total.IsNegative() {
		return nil, ErrNegativeTotal
	}

	rate, err := s.taxRate(ctx)
	if err != nil {
		return nil, err
	}

	sale := &Sale{
		ID:            uuid.New().String(),
		PaymentMethod: in.PaymentMethod,
		Source:        in.Source,
		Total:         in.Total.Round(2),
		Tax:           IncludedTax(in.Total, rate),
		ProductIDs:    in.ProductIDs,
		CreatedAt:     s.now(),
	}
	if err := s.sales.Create(ctx, sale); err != nil {
		return nil, fmt.Errorf("create sale: %w", err)
	}
	return sale, nil
}

func (s *Service) taxRate(ctx context.Context) (decimal.Decimal, error) {
	cfg, err := s.business.Get(ctx)
	if err != nil {
		if errors.Is(err, business.ErrNotFound) {
			return s.defaultTaxRate, nil
		}
		return decimal.Zero, fmt.Errorf("get business: %w", err)
	}
	return cfg.TaxRate, nil
}

// IncludedTax returns the tax share of a tax-inclusive total for a
// percentage rate, rounded to cents.
func IncludedTax(total, ratePercent decimal.Decimal) decimal.Decimal {
	if !ratePercent.IsPositive() {
		return decimal.Zero
	}
	hundred := decimal.NewFromInt(100)
	return total.Mul(ratePercent).Div(hundred.Add(ratePercent)).Round(2)
}
