package cart

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when the user has no active cart.
var ErrNotFound = errors.New("cart not found")

// Cart is the active cart of exactly one user.
type Cart struct {
	ID     int64
	UserID int64
	Items  []Item
}

// Item is a book reference with the quantity the user wants to buy.
type Item struct {
	BookID   int64
	Quantity int
}

// Empty reports whether the cart holds no items.
func (c *Cart) Empty() bool {
	return len(c.Items) == 0
}

// Service is the remote cart store.
type Service interface {
	GetByUser(ctx context.Context, userID int64) (*Cart, error)
	Clear(ctx context.Context, cartID int64) error
}
