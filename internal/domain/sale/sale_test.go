package sale

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/business"
)

type mockSaleRepo struct {
	created []*Sale
	err     error
}

func (m *mockSaleRepo) Create(_ context.Context, s *Sale) error {
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, s)
	return nil
}

type mockBusiness struct {
	cfg *business.Config
	err error
}

func (m *mockBusiness) Get(context.Context) (*business.Config, error) {
	return m.cfg, m.err
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestService_Record(t *testing.T) {
	ctx := context.Background()

	t.Run("uses the business tax rate", func(t *testing.T) {
		repo := &mockSaleRepo{}
		s := NewService(repo, &mockBusiness{cfg: &business.Config{TaxRate: dec("21")}}, dec("10"))

		got, err := s.Record(ctx, Input{PaymentMethod: "cash", Source: SourceCaja, Total: dec("121"), ProductIDs: []string{"a", "b"}})
		require.NoError(t, err)
		assert.True(t, dec("21").Equal(got.Tax), "tax: %s", got.Tax)
		assert.Equal(t, SourceCaja, got.Source)
		assert.NotEmpty(t, got.ID)
		assert.Equal(t, []string{"a", "b"}, repo.created[0].ProductIDs)
	})

	t.Run("falls back to the default rate", func(t *testing.T) {
		s := NewService(&mockSaleRepo{}, &mockBusiness{err: business.ErrNotFound}, dec("10"))
		got, err := s.Record(ctx, Input{PaymentMethod: "card", Source: SourceWeb, Total: dec("110")})
		require.NoError(t, err)
		assert.True(t, dec("10").Equal(got.Tax))
	})

	t.Run("business lookup failure", func(t *testing.T) {
		s := NewService(&mockSaleRepo{}, &mockBusiness{err: errors.New("timeout")}, dec("10"))
		_, err := s.Record(ctx, Input{PaymentMethod: "card", Source: SourceWeb, Total: dec("1")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "get business")
	})

	for _, tt := range []struct {
		name string
		in   Input
		want error
	}{
		{name: "unknown source", in: Input{PaymentMethod: "card", Source: "APP", Total: dec("1")}, want: ErrInvalidSource},
		{name: "no payment method", in: Input{Source: SourceWeb, Total: dec("1")}, want: ErrPaymentMethodRequired},
		{name: "negative total", in: Input{PaymentMethod: "card", Source: SourceWeb, Total: dec("-5")}, want: ErrNegativeTotal},
	} {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockSaleRepo{}
			s := NewService(repo, &mockBusiness{cfg: &business.Config{}}, decimal.Zero)
			_, err := s.Record(ctx, tt.in)
			require.ErrorIs(t, err, tt.want)
			assert.Empty(t, repo.created)
		})
	}
}

func TestIncludedTax(t *testing.T) {
	assert.True(t, dec("17.36").Equal(IncludedTax(dec("100"), dec("21"))))
	assert.True(t, IncludedTax(dec("100"), decimal.Zero).IsZero())
	assert.True(t, IncludedTax(dec("0"), dec("21")).IsZero())
}
