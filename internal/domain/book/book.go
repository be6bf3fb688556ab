package book

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested book does not exist.
var ErrNotFound = errors.New("book not found")

// Book represents a catalog item available for purchase.
type Book struct {
	ID        int64
	Title     string
	Author    string
	ISBN      string
	Condition string
	Price     decimal.Decimal
	Quantity  int
}

// Reader defines read access to the inventory.
type Reader interface {
	GetByID(ctx context.Context, id int64) (*Book, error)
}
