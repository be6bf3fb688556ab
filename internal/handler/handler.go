// Package handler exposes checkout and invoice operations over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/xenking/booklify-checkout/internal/domain/address"
	"github.com/xenking/booklify-checkout/internal/domain/checkout"
	"github.com/xenking/booklify-checkout/internal/domain/invoice"
	"github.com/xenking/booklify-checkout/pkg/httpmiddleware"
)

// Checkout is the subset of checkout.Service used by the handlers.
type Checkout interface {
	SaveCheckoutForm(ctx context.Context, userID int64, a address.Address) error
	SubmitPayment(ctx context.Context, req checkout.SubmitRequest) (*checkout.Result, error)
}

// Invoices is the subset of invoice.Service used by the handlers.
type Invoices interface {
	InvoiceForOrder(ctx context.Context, userID, orderID int64, customer invoice.User) (*invoice.Invoice, error)
}

var (
	_ Checkout = (*checkout.Service)(nil)
	_ Invoices = (*invoice.Service)(nil)
)

// Handler serves the authenticated API routes.
type Handler struct {
	checkout Checkout
	invoices Invoices
}

// NewHandler creates a Handler.
func NewHandler(c Checkout, i Invoices) *Handler {
	return &Handler{checkout: c, invoices: i}
}

// Register mounts the API routes on mux behind auth.
func (h *Handler) Register(mux *http.ServeMux, auth httpmiddleware.Middleware) {
	mux.Handle("PUT /api/checkout/form", auth(http.HandlerFunc(h.SaveCheckoutForm)))
	mux.Handle("POST /api/checkout/payments", auth(http.HandlerFunc(h.SubmitPayment)))
	mux.Handle("GET /api/invoices/{orderId}", auth(http.HandlerFunc(h.GetInvoice)))
	mux.Handle("GET /api/invoices/{orderId}/html", auth(http.HandlerFunc(h.GetInvoiceHTML)))
}
