package promo

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/product"
)

func TestComputeDiscount(t *testing.T) {
	tests := []struct {
		name     string
		promo    Promo
		subtotal string
		want     string
	}{
		{
			name:     "percentage",
			promo:    Promo{Type: TypePercentage, Value: dec("25")},
			subtotal: "80",
			want:     "20",
		},
		{
			name:     "percentage under cap",
			promo:    Promo{Type: TypePercentage, Value: dec("10"), MaxDiscount: ptr(dec("50"))},
			subtotal: "200",
			want:     "20",
		},
		{
			name:     "percentage over cap",
			promo:    Promo{Type: TypePercentage, Value: dec("50"), MaxDiscount: ptr(dec("30"))},
			subtotal: "200",
			want:     "30",
		},
		{
			name:     "fixed under subtotal",
			promo:    Promo{Type: TypeFixed, Value: dec("15")},
			subtotal: "40",
			want:     "15",
		},
		{
			name:     "fixed over subtotal",
			promo:    Promo{Type: TypeFixed, Value: dec("50")},
			subtotal: "30",
			want:     "30",
		},
		{
			name:     "zero subtotal",
			promo:    Promo{Type: TypeFixed, Value: dec("50")},
			subtotal: "0",
			want:     "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeDiscount(&tt.promo, dec(tt.subtotal))
			require.NoError(t, err)
			assert.True(t, dec(tt.want).Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestComputeDiscount_UnsupportedType(t *testing.T) {
	_, err := ComputeDiscount(&Promo{Type: "bogo", Value: dec("1")}, dec("10"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogo")
}

// Fixed discounts never exceed the subtotal and percentage discounts never
// exceed their cap, for any subtotal.
func TestComputeDiscount_Clamps(t *testing.T) {
	fixed := Promo{Type: TypeFixed, Value: dec("50")}
	capped := Promo{Type: TypePercentage, Value: dec("40"), MaxDiscount: ptr(dec("25"))}

	for cents := int64(0); cents <= 20000; cents += 137 {
		subtotal := decimal.New(cents, -2)

		d, err := ComputeDiscount(&fixed, subtotal)
		require.NoError(t, err)
		assert.True(t, d.LessThanOrEqual(subtotal), "fixed %s > subtotal %s", d, subtotal)
		assert.True(t, d.LessThanOrEqual(fixed.Value))

		d, err = ComputeDiscount(&capped, subtotal)
		require.NoError(t, err)
		assert.True(t, d.LessThanOrEqual(*capped.MaxDiscount), "capped %s > 25", d)
	}
}

func TestInScope(t *testing.T) {
	products := map[string]product.Product{
		"p1": {ID: "p1", CategoryID: "c1"},
		"p2": {ID: "p2"},
	}
	items := []Item{{ProductID: "p1", Quantity: 1}, {ProductID: "p2", Quantity: 1}}

	assert.True(t, InScope(&Promo{AllProducts: true}, nil, nil))
	assert.True(t, InScope(&Promo{AllCategories: true}, nil, nil))
	assert.False(t, InScope(&Promo{}, items, products))
	assert.True(t, InScope(&Promo{ProductIDs: []string{"p2"}}, items, products))
	assert.True(t, InScope(&Promo{CategoryIDs: []string{"c1"}}, items, products))
	assert.False(t, InScope(&Promo{CategoryIDs: []string{"c9"}}, items, products))
	assert.False(t, InScope(&Promo{CategoryIDs: []string{"c1"}}, items, nil))
}
