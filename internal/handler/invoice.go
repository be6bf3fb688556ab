package handler

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/xenking/booklify-checkout/internal/domain/auth"
	"github.com/xenking/booklify-checkout/internal/domain/invoice"
)

func (h *Handler) loadInvoice(w http.ResponseWriter, r *http.Request) (*invoice.Invoice, bool) {
	p, _ := auth.PrincipalFrom(r.Context())

	orderID, err := strconv.ParseInt(r.PathValue("orderId"), 10, 64)
	if err != nil || orderID <= 0 {
		writeError(w, http.StatusBadRequest, "orderId must be a positive integer")
		return nil, false
	}

	inv, err := h.invoices.InvoiceForOrder(r.Context(), p.UserID, orderID, invoice.User{
		ID:       p.UserID,
		FullName: p.Name,
		Email:    p.Email,
	})
	if err != nil {
		fail(w, r, err)
		return nil, false
	}
	return inv, true
}

// GetInvoice returns the invoice for one of the caller's orders as JSON.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, ok := h.loadInvoice(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newInvoiceResponse(inv))
}

// GetInvoiceHTML returns the printable invoice page.
func (h *Handler) GetInvoiceHTML(w http.ResponseWriter, r *http.Request) {
	inv, ok := h.loadInvoice(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := invoice.Render(&buf, inv); err != nil {
		fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
