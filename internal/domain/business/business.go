// Package business holds the store-wide configuration row.
package business

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when the business row has not been created yet.
var ErrNotFound = errors.New("business not found")

// Config is the store-wide business configuration.
type Config struct {
	Name     string
	Currency string
	// TaxRate is a percentage included in sale totals, e.g. 21 for 21%.
	TaxRate decimal.Decimal
	Email   string
	Phone   string
	Address string
}

// Repository reads the business configuration.
type Repository interface {
	Get(ctx context.Context) (*Config, error)
}
