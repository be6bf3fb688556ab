package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/booklify-checkout/internal/domain/invoice"
)

var _ invoice.Registry = (*InvoiceRegistry)(nil)

// InvoiceRegistry keeps the first invoice number issued per order.
type InvoiceRegistry struct {
	pool *pgxpool.Pool
}

// NewInvoiceRegistry returns an InvoiceRegistry that uses the given pool.
func NewInvoiceRegistry(pool *pgxpool.Pool) *InvoiceRegistry {
	return &InvoiceRegistry{pool: pool}
}

// Reserve inserts number for the order unless a number already exists, and
// returns whichever number is stored. Concurrent callers for the same order
// all observe the winning insert.
func (r *InvoiceRegistry) Reserve(
	ctx context.Context,
	orderID int64,
	number string,
	gross decimal.Decimal,
	issuedAt time.Time,
) (string, time.Time, error) {
	var (
		stored   string
		storedAt time.Time
	)
	err := r.pool.QueryRow(ctx, `
		INSERT INTO invoice_numbers (order_id, number, gross_total, issued_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (order_id) DO UPDATE SET order_id = EXCLUDED.order_id
		RETURNING number, issued_at`,
		orderID, number, gross, issuedAt,
	).Scan(&stored, &storedAt)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("reserving invoice number for order %d: %w", orderID, err)
	}
	return stored, storedAt, nil
}
