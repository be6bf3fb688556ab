package invoice

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/booklify-checkout/internal/domain/address"
	"github.com/xenking/booklify-checkout/internal/domain/order"
)

// ErrNoItems is returned when an order has no line items to invoice.
var ErrNoItems = errors.New("order has no items")

// Service loads orders and builds their invoices.
type Service struct {
	orders    order.Service
	addresses address.Service
	builder   *Builder
}

// NewService creates an invoice Service.
func NewService(orders order.Service, addresses address.Service, builder *Builder) *Service {
	return &Service{orders: orders, addresses: addresses, builder: builder}
}

// InvoiceForOrder builds the invoice for one of the user's orders. The user's
// profile address is offered to the cascade when it can be read.
func (s *Service) InvoiceForOrder(ctx context.Context, userID, orderID int64, customer User) (*Invoice, error) {
	o, err := order.FindForUser(ctx, s.orders, userID, orderID)
	if err != nil {
		return nil, err
	}

	items, err := s.orders.Items(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "get order items")
	}
	if len(items) == 0 {
		return nil, ErrNoItems
	}

	var profile *address.Address
	if s.addresses != nil {
		a, err := s.addresses.FindByUser(ctx, userID)
		switch {
		case err == nil:
			profile = a
		case !errors.Is(err, address.ErrNotFound):
			zctx.From(ctx).Warn("Could not fetch user address",
				zap.Int64("user_id", userID), zap.Error(err))
		}
	}

	if customer.ID == 0 {
		customer.ID = userID
	}
	return s.builder.Build(ctx, BuildRequest{
		Order:           o,
		Items:           items,
		Customer:        customer,
		CustomerAddress: profile,
	})
}
