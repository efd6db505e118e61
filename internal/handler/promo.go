package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/promo"
)

type promoView struct {
	ID             string     `json:"id"`
	Code           string     `json:"code"`
	Title          string     `json:"title"`
	Type           string     `json:"type"`
	Value          float64    `json:"value"`
	MaxDiscount    *float64   `json:"max_discount"`
	MinOrderAmount *float64   `json:"min_order_amount"`
	StartDate      *time.Time `json:"start_date"`
	EndDate        *time.Time `json:"end_date"`
	IsActive       bool       `json:"is_active"`
	UsageLimit     *int       `json:"usage_limit"`
	UsageCount     int        `json:"usage_count"`
	PerUserLimit   *int       `json:"per_user_limit"`
	AllProducts    bool       `json:"all_products"`
	AllCategories  bool       `json:"all_categories"`
	Products       []string   `json:"products"`
	Categories     []string   `json:"categories"`
	ShowInHome     bool       `json:"show_in_home"`
	Image          string     `json:"image,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func optFloat(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	v := d.InexactFloat64()
	return &v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func newPromoView(p *promo.Promo) promoView {
	return promoView{
		ID:             p.ID,
		Code:           p.Code,
		Title:          p.Title,
		Type:           string(p.Type),
		Value:          p.Value.InexactFloat64(),
		MaxDiscount:    optFloat(p.MaxDiscount),
		MinOrderAmount: optFloat(p.MinOrderAmount),
		StartDate:      p.StartDate,
		EndDate:        p.EndDate,
		IsActive:       p.IsActive,
		UsageLimit:     p.UsageLimit,
		UsageCount:     p.UsageCount,
		PerUserLimit:   p.PerUserLimit,
		AllProducts:    p.AllProducts,
		AllCategories:  p.AllCategories,
		Products:       nonNil(p.ProductIDs),
		Categories:     nonNil(p.CategoryIDs),
		ShowInHome:     p.ShowInHome,
		Image:          p.Image,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func promoViews(list []promo.Promo) []promoView {
	out := make([]promoView, len(list))
	for i := range list {
		out[i] = newPromoView(&list[i])
	}
	return out
}

// homePromoView is the public subset shown on the storefront.
type homePromoView struct {
	Code     string     `json:"code"`
	Title    string     `json:"title"`
	Type     string     `json:"type"`
	Value    float64    `json:"value"`
	Image    string     `json:"image,omitempty"`
	EndDate  *time.Time `json:"end_date"`
	MinOrder *float64   `json:"min_order_amount"`
}

func (h *Handler) listHomePromos(w http.ResponseWriter, r *http.Request) {
	list, err := h.Promos.ListHome(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	out := make([]homePromoView, len(list))
	for i, p := range list {
		out[i] = homePromoView{
			Code:     p.Code,
			Title:    p.Title,
			Type:     string(p.Type),
			Value:    p.Value.InexactFloat64(),
			Image:    p.Image,
			EndDate:  p.EndDate,
			MinOrder: optFloat(p.MinOrderAmount),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type lineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type validateRequest struct {
	Code  string        `json:"code"`
	Items []lineRequest `json:"items"`
}

type validateResponse struct {
	Applied  bool    `json:"applied"`
	Code     string  `json:"code,omitempty"`
	Subtotal float64 `json:"subtotal"`
	Discount float64 `json:"discount"`
	Total    float64 `json:"total"`
}

// validatePromo prices the promo against live catalog prices so the client
// cannot influence the subtotal.
func (h *Handler) validatePromo(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		badRequest(w, errors.New("code is required"))
		return
	}

	ids := make([]string, len(req.Items))
	for i, it := range req.Items {
		ids[i] = it.ProductID
	}
	fetched, err := h.Products.GetByIDs(r.Context(), ids)
	if err != nil {
		fail(w, r, err)
		return
	}
	found := product.Index(fetched)

	items := make([]promo.Item, 0, len(req.Items))
	subtotal := decimal.Zero
	for _, it := range req.Items {
		p, ok := found[it.ProductID]
		if !ok {
			continue
		}
		qty := max(1, it.Quantity)
		items = append(items, promo.Item{ProductID: p.ID, Quantity: qty})
		subtotal = subtotal.Add(p.Price.Mul(decimal.NewFromInt(int64(qty))))
	}
	subtotal = subtotal.Round(2)

	preq := promo.Request{Code: req.Code, Items: items, Subtotal: subtotal}
	if id, ok := userFromContext(r.Context()); ok {
		preq.UserID = &id
	}
	res, err := h.Evaluator.Evaluate(r.Context(), preq)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{
		Applied:  res.Applied,
		Code:     res.Code,
		Subtotal: subtotal.InexactFloat64(),
		Discount: res.Discount.InexactFloat64(),
		Total:    res.FinalTotal.InexactFloat64(),
	})
}

func (h *Handler) listPromos(w http.ResponseWriter, r *http.Request) {
	list, err := h.Promos.List(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, promoViews(list))
}

func (h *Handler) getPromo(w http.ResponseWriter, r *http.Request) {
	p, err := h.Promos.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPromoView(p))
}

func (h *Handler) createPromo(w http.ResponseWriter, r *http.Request) {
	var draft promo.Patch
	if err := decode(w, r, &draft); err != nil {
		badRequest(w, err)
		return
	}
	p, err := h.Promos.Create(r.Context(), draft)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newPromoView(p))
}

func (h *Handler) updatePromo(w http.ResponseWriter, r *http.Request) {
	var patch promo.Patch
	if err := decode(w, r, &patch); err != nil {
		badRequest(w, err)
		return
	}
	p, err := h.Promos.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPromoView(p))
}

func (h *Handler) deletePromo(w http.ResponseWriter, r *http.Request) {
	if err := h.Promos.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
