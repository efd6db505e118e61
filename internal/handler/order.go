package handler

import (
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/sale"
)

type orderRequest struct {
	Items         []lineRequest `json:"items"`
	PaymentMethod string        `json:"payment_method"`
	PromoCode     string        `json:"promo_code"`
	Customer      struct {
		Email      string `json:"email"`
		Name       string `json:"name"`
		Phone      string `json:"phone"`
		Address    string `json:"address"`
		City       string `json:"city"`
		PostalCode string `json:"postal_code"`
	} `json:"customer"`
}

type orderItemView struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

type orderResponse struct {
	OrderID   string          `json:"order_id"`
	Items     []orderItemView `json:"items"`
	Subtotal  float64         `json:"subtotal"`
	Discount  float64         `json:"discount"`
	Total     float64         `json:"total"`
	PromoCode string          `json:"promo_code,omitempty"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}

	in := order.CreateRequest{
		Items:         make([]order.Item, len(req.Items)),
		PaymentMethod: req.PaymentMethod,
		PromoCode:     req.PromoCode,
		Customer: order.Customer{
			Email:      req.Customer.Email,
			Name:       req.Customer.Name,
			Phone:      req.Customer.Phone,
			Address:    req.Customer.Address,
			City:       req.Customer.City,
			PostalCode: req.Customer.PostalCode,
		},
	}
	for i, it := range req.Items {
		in.Items[i] = order.Item{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	if uid, ok := userFromContext(r.Context()); ok {
		in.UserID = strconv.FormatInt(uid, 10)
	}

	res, err := h.Orders.CreateOrder(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}

	o := res.Order
	items := make([]orderItemView, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemView{
			ID:       it.ID,
			Title:    it.Title,
			Price:    it.Price.InexactFloat64(),
			Quantity: it.Quantity,
		}
	}
	writeJSON(w, http.StatusCreated, orderResponse{
		OrderID:   res.OrderID,
		Items:     items,
		Subtotal:  o.Subtotal.InexactFloat64(),
		Discount:  res.Discount.InexactFloat64(),
		Total:     res.Total.InexactFloat64(),
		PromoCode: o.PromoCode,
	})
}

type saleRequest struct {
	PaymentMethod string          `json:"payment_method"`
	Source        string          `json:"source"`
	Total         decimal.Decimal `json:"total"`
	Products      []string        `json:"products"`
}

type saleResponse struct {
	ID     string  `json:"id"`
	Source string  `json:"source"`
	Total  float64 `json:"total"`
	Tax    float64 `json:"tax"`
}

func (h *Handler) recordSale(w http.ResponseWriter, r *http.Request) {
	var req saleRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	s, err := h.Sales.Record(r.Context(), sale.Input{
		PaymentMethod: req.PaymentMethod,
		Source:        sale.Source(req.Source),
		Total:         req.Total,
		ProductIDs:    req.Products,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saleResponse{
		ID:     s.ID,
		Source: string(s.Source),
		Total:  s.Total.InexactFloat64(),
		Tax:    s.Tax.InexactFloat64(),
	})
}
