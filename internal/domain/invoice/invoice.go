// Package invoice derives presentation-ready invoices from placed orders.
//
// Unit prices on orders are tax-inclusive. The builder extracts the tax
// portion from the gross total instead of adding tax on top of it.
package invoice

import (
	"time"

	"github.com/shopspring/decimal"
)

// Default invoice values.
const (
	DefaultCurrency      = "R"
	DefaultDueDays       = 30
	DefaultCustomerName  = "Customer"
	DefaultInvoiceStatus = "Completed"
	DefaultOrderStatus   = "Processing"
	DefaultPaymentMethod = "Card Payment"
	DefaultCondition     = "Used"
	DefaultDescription   = "Book"

	Notes = "Thank you for your business with Booklify! All books are carefully inspected before delivery."
	Terms = "Payment is due within 30 days. Late payments may incur additional charges."
)

// DefaultTaxRate is the VAT rate applied when none is configured.
var DefaultTaxRate = decimal.RequireFromString("0.15")

// Company is the issuer block printed on every invoice.
type Company struct {
	Name    string
	Address string
	Email   string
	Phone   string
	Website string
}

// Booklify is the static issuer record.
var Booklify = Company{
	Name:    "Booklify",
	Address: "Cape Town, South Africa",
	Email:   "support@booklify.com",
	Phone:   "+27 (0) 21 XXX XXXX",
	Website: "www.booklify.com",
}

// Meta identifies an invoice.
type Meta struct {
	Number    string
	IssueDate time.Time
	DueDate   time.Time
	Status    string
}

// User is the authenticated customer an invoice is issued to.
type User struct {
	ID       int64
	FullName string
	Email    string
}

// Customer is the billed party as printed on the invoice.
type Customer struct {
	ID      int64
	Name    string
	Email   string
	Address string
}

// OrderSummary describes the order being invoiced.
type OrderSummary struct {
	ID            int64
	Date          time.Time
	PaymentMethod string
	Status        string
}

// Line is one invoiced book. UnitPrice and LineTotal include tax; the Net
// fields exclude it.
type Line struct {
	Description  string
	Author       string
	ISBN         string
	Condition    string
	Quantity     int
	UnitPrice    decimal.Decimal
	LineTotal    decimal.Decimal
	NetUnitPrice decimal.Decimal
	NetLineTotal decimal.Decimal
}

// Totals holds the money block. GrossTotal is the amount paid.
type Totals struct {
	NetSubtotal decimal.Decimal
	TaxRate     decimal.Decimal
	TaxAmount   decimal.Decimal
	GrossTotal  decimal.Decimal
	Currency    string
}

// Invoice is a derived, presentation-ready invoice record.
type Invoice struct {
	Meta     Meta
	Company  Company
	Customer Customer
	Order    OrderSummary
	Items    []Line
	Totals   Totals
	Notes    string
	Terms    string

	// AddressSource names the resolver that produced Customer.Address.
	AddressSource Source
}
