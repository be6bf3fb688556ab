package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/booklify-checkout/internal/domain/address"
	"github.com/xenking/booklify-checkout/internal/domain/order"
	"github.com/xenking/booklify-checkout/internal/kv"
)

// Registry persists the first invoice number issued for an order.
type Registry interface {
	// Reserve stores number for the order unless one exists, and returns the
	// stored number and issue time.
	Reserve(ctx context.Context, orderID int64, number string, gross decimal.Decimal, issuedAt time.Time) (string, time.Time, error)
}

// Config holds the invoice settings.
type Config struct {
	TaxRate  decimal.Decimal
	Currency string
	DueDays  int
}

func (c *Config) setDefaults() {
	if c.TaxRate.IsZero() {
		c.TaxRate = DefaultTaxRate
	}
	if c.Currency == "" {
		c.Currency = DefaultCurrency
	}
	if c.DueDays <= 0 {
		c.DueDays = DefaultDueDays
	}
}

// Sources are the address lookups available to the resolver cascade.
type Sources struct {
	Session   kv.Store
	Durable   kv.Store
	Addresses address.Service
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithResolvers replaces the address cascade.
func WithResolvers(rs []Resolver) BuilderOption {
	return func(b *Builder) { b.resolvers = rs }
}

// WithRegistry makes invoice numbers stable per order.
func WithRegistry(r Registry) BuilderOption {
	return func(b *Builder) { b.registry = r }
}

// WithNow overrides the time source.
func WithNow(now func() time.Time) BuilderOption {
	return func(b *Builder) { b.now = now }
}

// WithTracer enables tracing of invoice building.
func WithTracer(tp trace.TracerProvider) BuilderOption {
	return func(b *Builder) { b.tracer = tp.Tracer("invoice") }
}

// Builder assembles invoices.
type Builder struct {
	cfg       Config
	sources   Sources
	resolvers []Resolver
	registry  Registry
	now       func() time.Time
	tracer    trace.Tracer
}

// NewBuilder creates a Builder.
func NewBuilder(cfg Config, sources Sources, opts ...BuilderOption) *Builder {
	cfg.setDefaults()
	b := &Builder{
		cfg:       cfg,
		sources:   sources,
		resolvers: DefaultResolvers(),
		now:       time.Now,
		tracer:    tracenoop.NewTracerProvider().Tracer("invoice"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuildRequest holds the input for building an invoice.
type BuildRequest struct {
	Order           *order.Order
	Items           []order.Item
	Customer        User
	CustomerAddress *address.Address
}

// Build derives the invoice for an order. It fails only when a stable number
// cannot be reserved.
func (b *Builder) Build(ctx context.Context, req BuildRequest) (*Invoice, error) {
	o := req.Order
	if o == nil {
		return nil, errors.New("order is required")
	}
	ctx, span := b.tracer.Start(ctx, "invoice.Build",
		trace.WithAttributes(attribute.Int64("order.id", o.ID)))
	defer span.End()

	lines := make([]Line, len(req.Items))
	for i, it := range req.Items {
		lines[i] = b.line(it)
	}
	totals := ComputeTotals(lines, b.cfg.TaxRate)
	totals.Currency = b.cfg.Currency

	issued := b.now()
	number := Number(o.ID, issued)
	if b.registry != nil {
		n, at, err := b.registry.Reserve(ctx, o.ID, number, totals.GrossTotal, issued)
		if err != nil {
			return nil, errors.Wrap(err, "reserve invoice number")
		}
		number, issued = n, at
	}

	rc := &ResolveContext{
		UserID:          req.Customer.ID,
		Session:         b.sources.Session,
		Durable:         b.sources.Durable,
		Addresses:       b.sources.Addresses,
		CustomerAddress: req.CustomerAddress,
	}
	if rc.UserID == 0 {
		rc.UserID = o.UserID
	}
	addr, source := ResolveAddress(ctx, b.resolvers, o, rc)
	span.SetAttributes(attribute.String("invoice.address_source", string(source)))

	customer := Customer{
		ID:      req.Customer.ID,
		Name:    orDefault(req.Customer.FullName, DefaultCustomerName),
		Email:   req.Customer.Email,
		Address: addr,
	}
	if customer.ID == 0 {
		customer.ID = o.UserID
	}

	return &Invoice{
		Meta: Meta{
			Number:    number,
			IssueDate: issued,
			DueDate:   issued.AddDate(0, 0, b.cfg.DueDays),
			Status:    orDefault(o.Status, DefaultInvoiceStatus),
		},
		Company:  Booklify,
		Customer: customer,
		Order: OrderSummary{
			ID:            o.ID,
			Date:          o.OrderDate,
			PaymentMethod: orDefault(o.PaymentMethod, DefaultPaymentMethod),
			Status:        orDefault(o.Status, DefaultOrderStatus),
		},
		Items:         lines,
		Totals:        totals,
		Notes:         Notes,
		Terms:         Terms,
		AddressSource: source,
	}, nil
}

func (b *Builder) line(it order.Item) Line {
	qty := it.Quantity
	if qty <= 0 {
		qty = 1
	}
	l := Line{
		Description: DefaultDescription,
		Condition:   DefaultCondition,
		Quantity:    qty,
		UnitPrice:   it.Price,
	}
	if bk := it.Book; bk != nil {
		l.Description = orDefault(bk.Title, DefaultDescription)
		l.Author = bk.Author
		l.ISBN = bk.ISBN
		l.Condition = orDefault(bk.Condition, DefaultCondition)
	}
	q := decimal.NewFromInt(int64(qty))
	l.LineTotal = l.UnitPrice.Mul(q)
	l.NetUnitPrice = l.UnitPrice.Div(decimal.NewFromInt(1).Add(b.cfg.TaxRate))
	l.NetLineTotal = l.NetUnitPrice.Mul(q)
	return l
}

// ComputeTotals extracts tax from the tax-inclusive line totals:
//
//	tax = gross * rate / (1 + rate)
//	net = gross - tax
func ComputeTotals(lines []Line, rate decimal.Decimal) Totals {
	gross := decimal.Zero
	for _, l := range lines {
		gross = gross.Add(l.LineTotal)
	}
	tax := gross.Mul(rate).Div(decimal.NewFromInt(1).Add(rate))
	return Totals{
		NetSubtotal: gross.Sub(tax),
		TaxRate:     rate,
		TaxAmount:   tax,
		GrossTotal:  gross,
	}
}

// Number formats an invoice number as INV-{orderID}-{epochMillis}.
func Number(orderID int64, at time.Time) string {
	return fmt.Sprintf("INV-%d-%d", orderID, at.UnixMilli())
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
