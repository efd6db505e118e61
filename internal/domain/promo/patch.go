package promo

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Opt is a patch field with three states: unset, explicitly null, or a value.
type Opt[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some returns an Opt holding v.
func Some[T any](v T) Opt[T] {
	return Opt[T]{Set: true, Value: v}
}

// Null returns an Opt that clears the field.
func Null[T any]() Opt[T] {
	return Opt[T]{Set: true, Null: true}
}

// UnmarshalJSON is only invoked for keys present in the payload, which is what
// separates an unset field from a null one.
func (o *Opt[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		o.Null = true
		return nil
	}
	return json.Unmarshal(b, &o.Value)
}

// apply overwrites dst with the value. Null is ignored for required fields.
func (o Opt[T]) apply(dst *T) {
	if o.Set && !o.Null {
		*dst = o.Value
	}
}

func applyPtr[T any](o Opt[T], dst **T) {
	switch {
	case !o.Set:
	case o.Null:
		*dst = nil
	default:
		v := o.Value
		*dst = &v
	}
}

// Patch is a partial promo update. Fields left unset keep their prior value.
// A null clears optional fields and is ignored for required ones.
type Patch struct {
	Code           Opt[string]          `json:"code"`
	Title          Opt[string]          `json:"title"`
	Type           Opt[Type]            `json:"type"`
	Value          Opt[decimal.Decimal] `json:"value"`
	MaxDiscount    Opt[decimal.Decimal] `json:"max_discount"`
	MinOrderAmount Opt[decimal.Decimal] `json:"min_order_amount"`
	StartDate      Opt[time.Time]       `json:"start_date"`
	EndDate        Opt[time.Time]       `json:"end_date"`
	IsActive       Opt[bool]            `json:"is_active"`
	UsageLimit     Opt[int]             `json:"usage_limit"`
	PerUserLimit   Opt[int]             `json:"per_user_limit"`
	AllProducts    Opt[bool]            `json:"all_products"`
	AllCategories  Opt[bool]            `json:"all_categories"`
	ProductIDs     Opt[[]string]        `json:"products"`
	CategoryIDs    Opt[[]string]        `json:"categories"`
	ShowInHome     Opt[bool]            `json:"show_in_home"`
	Image          Opt[string]          `json:"image"`
}

// Apply returns cur with the patch applied. cur is not modified.
func (p Patch) Apply(cur Promo) Promo {
	next := cur
	next.ProductIDs = append([]string(nil), cur.ProductIDs...)
	next.CategoryIDs = append([]string(nil), cur.CategoryIDs...)

	p.Code.apply(&next.Code)
	p.Title.apply(&next.Title)
	p.Type.apply(&next.Type)
	p.Value.apply(&next.Value)
	applyPtr(p.MaxDiscount, &next.MaxDiscount)
	applyPtr(p.MinOrderAmount, &next.MinOrderAmount)
	applyPtr(p.StartDate, &next.StartDate)
	applyPtr(p.EndDate, &next.EndDate)
	p.IsActive.apply(&next.IsActive)
	applyPtr(p.UsageLimit, &next.UsageLimit)
	applyPtr(p.PerUserLimit, &next.PerUserLimit)
	p.AllProducts.apply(&next.AllProducts)
	p.AllCategories.apply(&next.AllCategories)
	p.ShowInHome.apply(&next.ShowInHome)

	if p.ProductIDs.Set {
		next.ProductIDs = append([]string(nil), p.ProductIDs.Value...)
	}
	if p.CategoryIDs.Set {
		next.CategoryIDs = append([]string(nil), p.CategoryIDs.Value...)
	}
	if p.Image.Set {
		next.Image = ""
		if !p.Image.Null {
			next.Image = p.Image.Value
		}
	}

	next.Code = NormalizeCode(next.Code)
	return next
}

// Validate checks a promo before it is written.
func Validate(p *Promo) error {
	if p.Code == "" {
		return &ValidationError{Field: "code", Reason: "must not be empty"}
	}
	if p.Title == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	switch p.Type {
	case TypePercentage:
		if p.Value.IsNegative() || p.Value.GreaterThan(hundred) {
			return &ValidationError{Field: "value", Reason: "percentage must be within [0, 100]"}
		}
	case TypeFixed:
		if !p.Value.IsPositive() {
			return &ValidationError{Field: "value", Reason: "fixed amount must be positive"}
		}
	default:
		return &ValidationError{Field: "type", Reason: "must be percentage or fixed"}
	}
	if p.MaxDiscount != nil && p.MaxDiscount.IsNegative() {
		return &ValidationError{Field: "max_discount", Reason: "must not be negative"}
	}
	if p.MinOrderAmount != nil && p.MinOrderAmount.IsNegative() {
		return &ValidationError{Field: "min_order_amount", Reason: "must not be negative"}
	}
	if p.StartDate != nil && p.EndDate != nil && p.StartDate.After(*p.EndDate) {
		return &ValidationError{Field: "end_date", Reason: "must not be before start_date"}
	}
	if p.UsageLimit != nil && *p.UsageLimit < 0 {
		return &ValidationError{Field: "usage_limit", Reason: "must not be negative"}
	}
	if p.PerUserLimit != nil && *p.PerUserLimit < 0 {
		return &ValidationError{Field: "per_user_limit", Reason: "must not be negative"}
	}
	return nil
}
