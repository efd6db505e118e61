package cache

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/promo"
)

func encodePromo(e *jx.Encoder, p *promo.Promo) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("code", func(e *jx.Encoder) { e.Str(p.Code) })
		e.Field("title", func(e *jx.Encoder) { e.Str(p.Title) })
		e.Field("type", func(e *jx.Encoder) { e.Str(string(p.Type)) })
		e.Field("value", func(e *jx.Encoder) { e.Str(p.Value.String()) })
		if p.MaxDiscount != nil {
			e.Field("max_discount", func(e *jx.Encoder) { e.Str(p.MaxDiscount.String()) })
		}
		if p.MinOrderAmount != nil {
			e.Field("min_order_amount", func(e *jx.Encoder) { e.Str(p.MinOrderAmount.String()) })
		}
		if p.StartDate != nil {
			e.Field("start_date", func(e *jx.Encoder) { e.Str(p.StartDate.Format(time.RFC3339Nano)) })
		}
		if p.EndDate != nil {
			e.Field("end_date", func(e *jx.Encoder) { e.Str(p.EndDate.Format(time.RFC3339Nano)) })
		}
		e.Field("is_active", func(e *jx.Encoder) { e.Bool(p.IsActive) })
		if p.UsageLimit != nil {
			e.Field("usage_limit", func(e *jx.Encoder) { e.Int(*p.UsageLimit) })
		}
		e.Field("usage_count", func(e *jx.Encoder) { e.Int(p.UsageCount) })
		if p.PerUserLimit != nil {
			e.Field("per_user_limit", func(e *jx.Encoder) { e.Int(*p.PerUserLimit) })
		}
		e.Field("all_products", func(e *jx.Encoder) { e.Bool(p.AllProducts) })
		e.Field("all_categories", func(e *jx.Encoder) { e.Bool(p.AllCategories) })
		e.Field("products", func(e *jx.Encoder) { encodeStrings(e, p.ProductIDs) })
		e.Field("categories", func(e *jx.Encoder) { encodeStrings(e, p.CategoryIDs) })
		e.Field("show_in_home", func(e *jx.Encoder) { e.Bool(p.ShowInHome) })
		e.Field("image", func(e *jx.Encoder) { e.Str(p.Image) })
		e.Field("created_at", func(e *jx.Encoder) { e.Str(p.CreatedAt.Format(time.RFC3339Nano)) })
		e.Field("updated_at", func(e *jx.Encoder) { e.Str(p.UpdatedAt.Format(time.RFC3339Nano)) })
	})
}

func encodeStrings(e *jx.Encoder, ss []string) {
	e.ArrStart()
	for _, s := range ss {
		e.Str(s)
	}
	e.ArrEnd()
}

func decodePromo(data []byte) (*promo.Promo, error) {
	var p promo.Promo
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Str()
		case "code":
			p.Code, err = d.Str()
		case "title":
			p.Title, err = d.Str()
		case "type":
			var s string
			s, err = d.Str()
			p.Type = promo.Type(s)
		case "value":
			p.Value, err = decodeDecimal(d)
		case "max_discount":
			var v decimal.Decimal
			v, err = decodeDecimal(d)
			p.MaxDiscount = &v
		case "min_order_amount":
			var v decimal.Decimal
			v, err = decodeDecimal(d)
			p.MinOrderAmount = &v
		case "start_date":
			var t time.Time
			t, err = decodeTime(d)
			p.StartDate = &t
		case "end_date":
			var t time.Time
			t, err = decodeTime(d)
			p.EndDate = &t
		case "is_active":
			p.IsActive, err = d.Bool()
		case "usage_limit":
			var n int
			n, err = d.Int()
			p.UsageLimit = &n
		case "usage_count":
			p.UsageCount, err = d.Int()
		case "per_user_limit":
			var n int
			n, err = d.Int()
			p.PerUserLimit = &n
		case "all_products":
			p.AllProducts, err = d.Bool()
		case "all_categories":
			p.AllCategories, err = d.Bool()
		case "products":
			p.ProductIDs, err = decodeStrings(d)
		case "categories":
			p.CategoryIDs, err = decodeStrings(d)
		case "show_in_home":
			p.ShowInHome, err = d.Bool()
		case "image":
			p.Image, err = d.Str()
		case "created_at":
			p.CreatedAt, err = decodeTime(d)
		case "updated_at":
			p.UpdatedAt, err = decodeTime(d)
		default:
			return d.Skip()
		}
		return errors.Wrap(err, key)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	s, err := d.Str()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(s)
}

func decodeTime(d *jx.Decoder) (time.Time, error) {
	s, err := d.Str()
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, s)
}

func decodeStrings(d *jx.Decoder) ([]string, error) {
	var out []string
	err := d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}
