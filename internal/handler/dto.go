package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/booklify-checkout/internal/domain/address"
	"github.com/xenking/booklify-checkout/internal/domain/checkout"
	"github.com/xenking/booklify-checkout/internal/domain/invoice"
)

type addressRequest struct {
	Street     string `json:"street"`
	Suburb     string `json:"suburb"`
	City       string `json:"city"`
	Province   string `json:"province"`
	Country    string `json:"country"`
	PostalCode string `json:"postalCode"`
}

func (a addressRequest) toDomain() address.Address {
	return address.Address{
		Street:     a.Street,
		Suburb:     a.Suburb,
		City:       a.City,
		Province:   a.Province,
		Country:    a.Country,
		PostalCode: a.PostalCode,
	}
}

type submitPaymentRequest struct {
	PaymentMethod string          `json:"paymentMethod"`
	Address       *addressRequest `json:"address,omitempty"`
}

type paymentResponse struct {
	ID            int64     `json:"id"`
	OrderID       int64     `json:"orderId"`
	UserID        int64     `json:"userId"`
	PaymentMethod string    `json:"paymentMethod"`
	CreatedAt     time.Time `json:"createdAt,omitzero"`
}

type warning struct {
	Task    string `json:"task"`
	BookID  int64  `json:"bookId,omitempty"`
	Message string `json:"message"`
}

type submitPaymentResponse struct {
	Payment         paymentResponse `json:"payment"`
	OrderID         int64           `json:"orderId"`
	DeliveryAddress string          `json:"deliveryAddress"`
	Warnings        []warning       `json:"warnings"`
}

func newSubmitPaymentResponse(res *checkout.Result) submitPaymentResponse {
	out := submitPaymentResponse{
		Payment: paymentResponse{
			ID:            res.Payment.ID,
			OrderID:       res.Payment.OrderID,
			UserID:        res.Payment.UserID,
			PaymentMethod: string(res.Payment.Method),
			CreatedAt:     res.Payment.CreatedAt,
		},
		OrderID:         res.Order.ID,
		DeliveryAddress: res.DeliveryAddress,
		Warnings:        make([]warning, 0, len(res.Failures)),
	}
	for _, f := range res.Failures {
		out.Warnings = append(out.Warnings, warning{Task: f.Task, BookID: f.BookID, Message: f.Err.Error()})
	}
	return out
}

// fixed renders amounts with two decimals. The invoice record is unrounded.
func fixed(d decimal.Decimal) string { return d.StringFixed(2) }

type invoiceResponse struct {
	Invoice struct {
		Number    string    `json:"number"`
		IssueDate time.Time `json:"issueDate"`
		DueDate   time.Time `json:"dueDate"`
		Status    string    `json:"status"`
	} `json:"invoice"`
	Company struct {
		Name    string `json:"name"`
		Address string `json:"address"`
		Email   string `json:"email"`
		Phone   string `json:"phone"`
		Website string `json:"website"`
	} `json:"company"`
	Customer struct {
		ID      int64  `json:"id"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		Address string `json:"address"`
	} `json:"customer"`
	Order struct {
		ID            int64     `json:"id"`
		Date          time.Time `json:"date,omitzero"`
		PaymentMethod string    `json:"paymentMethod"`
		Status        string    `json:"status"`
	} `json:"order"`
	Items  []invoiceLine `json:"items"`
	Totals struct {
		Subtotal    string `json:"subtotal"`
		TaxRate     string `json:"taxRate"`
		TaxAmount   string `json:"taxAmount"`
		TotalAmount string `json:"totalAmount"`
		Currency    string `json:"currency"`
	} `json:"totals"`
	Notes         string `json:"notes"`
	Terms         string `json:"terms"`
	AddressSource string `json:"addressSource"`
}

type invoiceLine struct {
	Description  string `json:"description"`
	Author       string `json:"author,omitempty"`
	ISBN         string `json:"isbn,omitempty"`
	Condition    string `json:"condition"`
	Quantity     int    `json:"quantity"`
	UnitPrice    string `json:"unitPrice"`
	Total        string `json:"total"`
	NetUnitPrice string `json:"netUnitPrice"`
	NetTotal     string `json:"netTotal"`
}

func newInvoiceResponse(inv *invoice.Invoice) invoiceResponse {
	var out invoiceResponse
	out.Invoice.Number = inv.Meta.Number
	out.Invoice.IssueDate = inv.Meta.IssueDate
	out.Invoice.DueDate = inv.Meta.DueDate
	out.Invoice.Status = inv.Meta.Status

	out.Company.Name = inv.Company.Name
	out.Company.Address = inv.Company.Address
	out.Company.Email = inv.Company.Email
	out.Company.Phone = inv.Company.Phone
	out.Company.Website = inv.Company.Website

	out.Customer.ID = inv.Customer.ID
	out.Customer.Name = inv.Customer.Name
	out.Customer.Email = inv.Customer.Email
	out.Customer.Address = inv.Customer.Address

	out.Order.ID = inv.Order.ID
	out.Order.Date = inv.Order.Date
	out.Order.PaymentMethod = inv.Order.PaymentMethod
	out.Order.Status = inv.Order.Status

	out.Items = make([]invoiceLine, 0, len(inv.Items))
	for _, l := range inv.Items {
		out.Items = append(out.Items, invoiceLine{
			Description:  l.Description,
			Author:       l.Author,
			ISBN:         l.ISBN,
			Condition:    l.Condition,
			Quantity:     l.Quantity,
			UnitPrice:    fixed(l.UnitPrice),
			Total:        fixed(l.LineTotal),
			NetUnitPrice: fixed(l.NetUnitPrice),
			NetTotal:     fixed(l.NetLineTotal),
		})
	}

	out.Totals.Subtotal = fixed(inv.Totals.NetSubtotal)
	out.Totals.TaxRate = inv.Totals.TaxRate.String()
	out.Totals.TaxAmount = fixed(inv.Totals.TaxAmount)
	out.Totals.TotalAmount = fixed(inv.Totals.GrossTotal)
	out.Totals.Currency = inv.Totals.Currency

	out.Notes = inv.Notes
	out.Terms = inv.Terms
	out.AddressSource = string(inv.AddressSource)
	return out
}
