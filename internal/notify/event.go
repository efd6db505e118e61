// Package notify publishes order confirmations to kafka and consumes them in
// the notification worker.
package notify

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/order"
)

// OrderPlaced is the message published after an order is persisted.
type OrderPlaced struct {
	OrderID   string
	Email     string
	Name      string
	Subtotal  decimal.Decimal
	Discount  decimal.Decimal
	Total     decimal.Decimal
	PromoCode string
	Items     []Item
	CreatedAt time.Time
}

// Item is an ordered product as shown in the confirmation.
type Item struct {
	ID       string
	Title    string
	Price    decimal.Decimal
	Quantity int
}

// NewOrderPlaced builds the event for an order and its buyer.
func NewOrderPlaced(o *order.Order, c order.Customer) OrderPlaced {
	items := make([]Item, len(o.Items))
	for i, it := range o.Items {
		items[i] = Item{ID: it.ID, Title: it.Title, Price: it.Price, Quantity: it.Quantity}
	}
	email, name := o.BuyerEmail, o.BuyerName
	if email == "" {
		email = c.Email
	}
	if name == "" {
		name = c.Name
	}
	return OrderPlaced{
		OrderID:   o.ID,
		Email:     email,
		Name:      name,
		Subtotal:  o.Subtotal,
		Discount:  o.Discount,
		Total:     o.Total,
		PromoCode: o.PromoCode,
		Items:     items,
		CreatedAt: o.CreatedAt,
	}
}

// Encode writes the event as JSON.
func (ev *OrderPlaced) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("order_id", func(e *jx.Encoder) { e.Str(ev.OrderID) })
		e.Field("email", func(e *jx.Encoder) { e.Str(ev.Email) })
		e.Field("name", func(e *jx.Encoder) { e.Str(ev.Name) })
		e.Field("subtotal", func(e *jx.Encoder) { e.Str(ev.Subtotal.StringFixed(2)) })
		e.Field("discount", func(e *jx.Encoder) { e.Str(ev.Discount.StringFixed(2)) })
		e.Field("total", func(e *jx.Encoder) { e.Str(ev.Total.StringFixed(2)) })
		if ev.PromoCode != "" {
			e.Field("promo_code", func(e *jx.Encoder) { e.Str(ev.PromoCode) })
		}
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range ev.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("id", func(e *jx.Encoder) { e.Str(it.ID) })
						e.Field("title", func(e *jx.Encoder) { e.Str(it.Title) })
						e.Field("price", func(e *jx.Encoder) { e.Str(it.Price.StringFixed(2)) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
					})
				}
			})
		})
		e.Field("created_at", func(e *jx.Encoder) { e.Str(ev.CreatedAt.UTC().Format(time.RFC3339Nano)) })
	})
}

// Decode reads the event from JSON. Unknown fields are skipped.
func (ev *OrderPlaced) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "order_id":
			ev.OrderID, err = d.Str()
		case "email":
			ev.Email, err = d.Str()
		case "name":
			ev.Name, err = d.Str()
		case "subtotal":
			ev.Subtotal, err = decodeDecimal(d)
		case "discount":
			ev.Discount, err = decodeDecimal(d)
		case "total":
			ev.Total, err = decodeDecimal(d)
		case "promo_code":
			ev.PromoCode, err = d.Str()
		case "items":
			err = d.Arr(func(d *jx.Decoder) error {
				var it Item
				if err := it.decode(d); err != nil {
					return err
				}
				ev.Items = append(ev.Items, it)
				return nil
			})
		case "created_at":
			var s string
			if s, err = d.Str(); err == nil {
				ev.CreatedAt, err = time.Parse(time.RFC3339Nano, s)
			}
		default:
			return d.Skip()
		}
		return errors.Wrap(err, key)
	})
}

func (it *Item) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			it.ID, err = d.Str()
		case "title":
			it.Title, err = d.Str()
		case "price":
			it.Price, err = decodeDecimal(d)
		case "quantity":
			it.Quantity, err = d.Int()
		default:
			return d.Skip()
		}
		return errors.Wrap(err, key)
	})
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	s, err := d.Str()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(s)
}
