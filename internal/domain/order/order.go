package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/booklify-checkout/internal/domain/address"
	"github.com/xenking/booklify-checkout/internal/domain/book"
)

// ErrNotFound is returned when the order does not exist or belongs to
// another user.
var ErrNotFound = errors.New("order not found")

// Status is the fulfilment state of an order item.
type Status string

// StatusPending is the initial state of every order item.
const StatusPending Status = "PENDING"

// Order is a placed customer order. DeliveryAddress is the address string
// captured at creation time and is not affected by later address edits.
type Order struct {
	ID                int64
	UserID            int64
	ShippingAddressID int64
	DeliveryAddress   string
	ShippingAddress   *address.Address
	Status            string
	PaymentMethod     string
	OrderDate         time.Time
	Items             []Item
}

// Item is a single line of an order.
type Item struct {
	ID       int64
	BookID   int64
	Quantity int
	Status   Status
	// Price is the tax-inclusive unit price charged.
	Price decimal.Decimal
	Book  *book.Book
}

// CreateRequest holds the input for placing an order.
type CreateRequest struct {
	UserID          int64
	AddressID       int64
	DeliveryAddress string
	Items           []Item
}

// Service is the remote order store.
type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Order, error)
	ListByUser(ctx context.Context, userID int64) ([]Order, error)
	Items(ctx context.Context, orderID int64) ([]Item, error)
}

// FindForUser returns the user's order with the given id, or ErrNotFound.
func FindForUser(ctx context.Context, s Service, userID, orderID int64) (*Order, error) {
	orders, err := s.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	for i := range orders {
		if orders[i].ID == orderID {
			return &orders[i], nil
		}
	}
	return nil, ErrNotFound
}
