package promo

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatch_UnmarshalJSON(t *testing.T) {
	var p Patch
	require.NoError(t, json.Unmarshal([]byte(`{
		"title": "Winter",
		"value": "12.5",
		"max_discount": null,
		"usage_limit": 10
	}`), &p))

	assert.True(t, p.Title.Set)
	assert.Equal(t, "Winter", p.Title.Value)
	assert.True(t, p.Value.Set)
	assert.True(t, dec("12.5").Equal(p.Value.Value))
	assert.True(t, p.MaxDiscount.Set)
	assert.True(t, p.MaxDiscount.Null)
	assert.Equal(t, 10, p.UsageLimit.Value)
	assert.False(t, p.Code.Set)
	assert.False(t, p.EndDate.Set)
}

func TestPatch_Apply(t *testing.T) {
	end := testNow.Add(48 * time.Hour)
	cur := Promo{
		ID:          "id-1",
		Code:        "SUMMER10",
		Title:       "Summer",
		Type:        TypePercentage,
		Value:       dec("10"),
		MaxDiscount: ptr(dec("20")),
		EndDate:     &end,
		IsActive:    true,
		UsageLimit:  ptr(5),
		UsageCount:  3,
		ProductIDs:  []string{"p1"},
		Image:       "promos/summer.png",
	}

	t.Run("unset fields are preserved", func(t *testing.T) {
		next := Patch{Title: Some("Summer sale")}.Apply(cur)
		assert.Equal(t, "Summer sale", next.Title)
		assert.Equal(t, "SUMMER10", next.Code)
		assert.True(t, dec("10").Equal(next.Value))
		require.NotNil(t, next.MaxDiscount)
		assert.True(t, dec("20").Equal(*next.MaxDiscount))
		assert.Equal(t, 3, next.UsageCount)
		assert.Equal(t, []string{"p1"}, next.ProductIDs)
		assert.Equal(t, "promos/summer.png", next.Image)
	})

	t.Run("null clears optional fields", func(t *testing.T) {
		next := Patch{
			MaxDiscount: Null[decimal.Decimal](),
			EndDate:     Null[time.Time](),
			UsageLimit:  Null[int](),
			Image:       Null[string](),
		}.Apply(cur)
		assert.Nil(t, next.MaxDiscount)
		assert.Nil(t, next.EndDate)
		assert.Nil(t, next.UsageLimit)
		assert.Empty(t, next.Image)
	})

	t.Run("null is ignored for required fields", func(t *testing.T) {
		next := Patch{Title: Null[string](), IsActive: Null[bool]()}.Apply(cur)
		assert.Equal(t, "Summer", next.Title)
		assert.True(t, next.IsActive)
	})

	t.Run("code is normalized", func(t *testing.T) {
		next := Patch{Code: Some(" winter5 ")}.Apply(cur)
		assert.Equal(t, "WINTER5", next.Code)
	})

	t.Run("source promo is not modified", func(t *testing.T) {
		next := Patch{ProductIDs: Some([]string{"p2", "p3"}), UsageLimit: Some(50)}.Apply(cur)
		next.CategoryIDs = append(next.CategoryIDs, "c1")
		assert.Equal(t, []string{"p1"}, cur.ProductIDs)
		assert.Equal(t, 5, *cur.UsageLimit)
		assert.Equal(t, 50, *next.UsageLimit)
	})
}

func TestValidate(t *testing.T) {
	start := testNow
	before := testNow.Add(-time.Hour)
	valid := func() Promo {
		return Promo{Code: "OK", Title: "ok", Type: TypePercentage, Value: dec("10")}
	}

	tests := []struct {
		name   string
		mutate func(p *Promo)
		field  string
	}{
		{name: "valid", mutate: func(*Promo) {}},
		{name: "empty code", mutate: func(p *Promo) { p.Code = "" }, field: "code"},
		{name: "empty title", mutate: func(p *Promo) { p.Title = "" }, field: "title"},
		{name: "percentage above 100", mutate: func(p *Promo) { p.Value = dec("100.01") }, field: "value"},
		{name: "negative percentage", mutate: func(p *Promo) { p.Value = dec("-1") }, field: "value"},
		{name: "zero fixed", mutate: func(p *Promo) { p.Type = TypeFixed; p.Value = dec("0") }, field: "value"},
		{name: "unknown type", mutate: func(p *Promo) { p.Type = "bogo" }, field: "type"},
		{name: "end before start", mutate: func(p *Promo) { p.StartDate = &start; p.EndDate = &before }, field: "end_date"},
		{name: "negative usage limit", mutate: func(p *Promo) { p.UsageLimit = ptr(-1) }, field: "usage_limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid()
			tt.mutate(&p)
			err := Validate(&p)
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestGenerateCode(t *testing.T) {
	seen := make(map[string]struct{})
	for range 100 {
		code, err := GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, CodeLength)
		for _, c := range code {
			assert.Contains(t, codeAlphabet, string(c))
		}
		seen[code] = struct{}{}
	}
	assert.Greater(t, len(seen), 90)
}
