package handler

import (
	"encoding/json"
	"net/http"

	"github.com/xenking/booklify-checkout/internal/domain/auth"
	"github.com/xenking/booklify-checkout/internal/domain/checkout"
	"github.com/xenking/booklify-checkout/internal/domain/payment"
)

const maxBodyBytes = 64 << 10

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return false
	}
	return true
}

// SaveCheckoutForm stores the in-progress checkout address so a later
// payment submission can omit it.
func (h *Handler) SaveCheckoutForm(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())

	var req addressRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.checkout.SaveCheckoutForm(r.Context(), p.UserID, req.toDomain()); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubmitPayment places the order for the caller's cart and pays for it.
func (h *Handler) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())

	var req submitPaymentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	method, ok := payment.ParseMethod(req.PaymentMethod)
	if !ok {
		fail(w, r, checkout.ErrInvalidMethod)
		return
	}

	submit := checkout.SubmitRequest{UserID: p.UserID, Method: method}
	if req.Address != nil {
		a := req.Address.toDomain()
		submit.Address = &a
	}
	res, err := h.checkout.SubmitPayment(r.Context(), submit)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSubmitPaymentResponse(res))
}

