package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/booklify-checkout/internal/backend"
	"github.com/xenking/booklify-checkout/internal/domain/address"
	"github.com/xenking/booklify-checkout/internal/domain/checkout"
	"github.com/xenking/booklify-checkout/internal/domain/invoice"
	"github.com/xenking/booklify-checkout/internal/domain/order"
)

type errorBody struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
	OrderID int64    `json:"orderId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Code: status, Message: msg})
}

// fail maps a domain error onto a response. Unknown errors become an opaque
// 500 and are logged.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	body := errorBody{Message: err.Error()}

	var (
		validation *address.ValidationError
		payment    *checkout.PaymentError
		upstream   *backend.StatusError
		transport  *backend.TransportError
	)
	switch {
	case errors.As(err, &validation):
		body.Code = http.StatusUnprocessableEntity
		body.Fields = validation.Fields
	case errors.Is(err, checkout.ErrInvalidMethod),
		errors.Is(err, checkout.ErrEmptyCart):
		body.Code = http.StatusUnprocessableEntity
	case errors.Is(err, checkout.ErrNoCart),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, invoice.ErrNoItems):
		body.Code = http.StatusNotFound
	case errors.As(err, &payment):
		zctx.From(r.Context()).Warn("Payment failed", zap.Int64("order_id", payment.OrderID), zap.Error(err))
		body.Code = http.StatusBadGateway
		body.OrderID = payment.OrderID
	case errors.As(err, &upstream), errors.As(err, &transport):
		zctx.From(r.Context()).Warn("Backend failure", zap.Error(err))
		body.Code = http.StatusBadGateway
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		body.Code = http.StatusInternalServerError
		body.Message = "internal error"
	}
	writeJSON(w, body.Code, body)
}
