package handler

import "net/http"

type businessView struct {
	Name     string  `json:"name"`
	Currency string  `json:"currency"`
	TaxRate  float64 `json:"tax_rate"`
	Email    string  `json:"email,omitempty"`
	Phone    string  `json:"phone,omitempty"`
	Address  string  `json:"address,omitempty"`
}

func (h *Handler) getBusiness(w http.ResponseWriter, r *http.Request) {
	b, err := h.Business.Get(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, businessView{
		Name:     b.Name,
		Currency: b.Currency,
		TaxRate:  b.TaxRate.InexactFloat64(),
		Email:    b.Email,
		Phone:    b.Phone,
		Address:  b.Address,
	})
}
