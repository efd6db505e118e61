package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/business"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/promo"
	"github.com/xenking/storefront/internal/domain/sale"
	"github.com/xenking/storefront/internal/session"
)

const maxBodyBytes = 1 << 20

// Error codes that are not promo kinds.
const (
	codeInvalidRequest  = "invalid_request"
	codeValidation      = "validation_error"
	codeCodeTaken       = "promo_code_taken"
	codeNotAvailable    = "product_not_available"
	codeItemNotFound    = "cart_item_not_found"
	codeUnauthorized    = "unauthorized"
	codeBusinessMissing = "business_not_configured"
	codeInternal        = "internal"
)

type errorResponse struct {
	Code      string   `json:"code"`
	Message   string   `json:"message"`
	Field     string   `json:"field,omitempty"`
	MinAmount *float64 `json:"min_amount,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// decode reads a JSON body into dst. An empty body is an error.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	if errors.Is(err, io.EOF) {
		return errors.New("empty body")
	}
	return err
}

// fail maps err to a status and a machine-readable code. Unknown errors are
// logged and reported as internal.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := classify(err)
	if status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, resp)
}

func classify(err error) (int, errorResponse) {
	if pe, ok := promo.AsError(err); ok {
		resp := errorResponse{Code: string(pe.Kind), Message: pe.Error()}
		if pe.Kind == promo.KindNotFound {
			return http.StatusNotFound, resp
		}
		if pe.Kind == promo.KindMinOrderAmountNotMet {
			v := pe.MinAmount.InexactFloat64()
			resp.MinAmount = &v
		}
		return http.StatusUnprocessableEntity, resp
	}

	var verr *promo.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, errorResponse{Code: codeValidation, Message: verr.Error(), Field: verr.Field}
	}

	switch {
	case errors.Is(err, promo.ErrCodeTaken):
		return http.StatusConflict, errorResponse{Code: codeCodeTaken, Message: err.Error()}
	case errors.Is(err, cart.ErrProductNotAvailable):
		return http.StatusUnprocessableEntity, errorResponse{Code: codeNotAvailable, Message: cart.ErrProductNotAvailable.Error()}
	case errors.Is(err, cart.ErrItemNotFound):
		return http.StatusNotFound, errorResponse{Code: codeItemNotFound, Message: cart.ErrItemNotFound.Error()}
	case errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, order.ErrPaymentMethodRequired),
		errors.Is(err, sale.ErrInvalidSource),
		errors.Is(err, sale.ErrPaymentMethodRequired),
		errors.Is(err, sale.ErrNegativeTotal):
		return http.StatusBadRequest, errorResponse{Code: codeValidation, Message: err.Error()}
	case errors.Is(err, business.ErrNotFound):
		return http.StatusNotFound, errorResponse{Code: codeBusinessMissing, Message: business.ErrNotFound.Error()}
	case errors.Is(err, session.ErrNoSession):
		return http.StatusUnauthorized, errorResponse{Code: codeUnauthorized, Message: "authentication required"}
	default:
		return http.StatusInternalServerError, errorResponse{Code: codeInternal, Message: "internal error"}
	}
}

func badRequest(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
}
