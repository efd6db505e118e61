package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/cart"
)

type cartLineView struct {
	ProductID       string  `json:"product_id"`
	Title           string  `json:"title,omitempty"`
	Price           float64 `json:"price"`
	Quantity        int     `json:"quantity"`
	Available       bool    `json:"available"`
	PriceHasChanged bool    `json:"price_has_changed"`
}

type cartView struct {
	ID    string         `json:"id"`
	Lines []cartLineView `json:"lines"`
	Total float64        `json:"total"`
}

type totalView struct {
	Total float64 `json:"total"`
}

func newCartLineView(l cart.Line) cartLineView {
	v := cartLineView{
		ProductID:       l.ProductID,
		Quantity:        l.Quantity,
		PriceHasChanged: l.PriceHasChanged,
	}
	if l.Product != nil {
		v.Title = l.Product.Title
		v.Price = l.Product.Price.InexactFloat64()
		v.Available = l.Product.Purchasable()
	}
	return v
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	uid, _ := userFromContext(r.Context())
	c, err := h.Carts.Get(r.Context(), uid)
	if err != nil {
		fail(w, r, err)
		return
	}
	lines := make([]cartLineView, len(c.Lines))
	for i, l := range c.Lines {
		lines[i] = newCartLineView(l)
	}
	writeJSON(w, http.StatusOK, cartView{ID: c.ID, Lines: lines, Total: c.Total.InexactFloat64()})
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	uid, _ := userFromContext(r.Context())
	if err := h.Carts.Clear(r.Context(), uid); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req lineRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	if req.ProductID == "" {
		badRequest(w, errors.New("product_id is required"))
		return
	}
	uid, _ := userFromContext(r.Context())
	res, err := h.Carts.AddItem(r.Context(), uid, req.ProductID, req.Quantity)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Line  cartLineView `json:"line"`
		Total float64      `json:"total"`
	}{newCartLineView(res.Line), res.Total.InexactFloat64()})
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := decode(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	uid, _ := userFromContext(r.Context())
	total, err := h.Carts.UpdateQuantity(r.Context(), uid, chi.URLParam(r, "productID"), req.Quantity)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, totalView{Total: total.InexactFloat64()})
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	uid, _ := userFromContext(r.Context())
	total, err := h.Carts.RemoveItem(r.Context(), uid, chi.URLParam(r, "productID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, totalView{Total: total.InexactFloat64()})
}

type mergeRequest struct {
	Items []struct {
		ProductID string           `json:"product_id"`
		Quantity  int              `json:"quantity"`
		Price     *decimal.Decimal `json:"price"`
	} `json:"items"`
}

func (h *Handler) mergeCart(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if err := decode(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	items := make([]cart.MergeItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = cart.MergeItem{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price}
	}
	uid, _ := userFromContext(r.Context())
	total, err := h.Carts.Merge(r.Context(), uid, items)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, totalView{Total: total.InexactFloat64()})
}
