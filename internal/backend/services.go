package backend

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/booklify-checkout/internal/domain/address"
	"github.com/xenking/booklify-checkout/internal/domain/book"
	"github.com/xenking/booklify-checkout/internal/domain/cart"
	"github.com/xenking/booklify-checkout/internal/domain/order"
	"github.com/xenking/booklify-checkout/internal/domain/payment"
)

var (
	_ address.Service = (*AddressService)(nil)
	_ cart.Service    = (*CartService)(nil)
	_ order.Service   = (*OrderService)(nil)
	_ payment.Service = (*PaymentService)(nil)
	_ book.Reader     = (*BookService)(nil)
)

var errNoID = errors.New("backend returned no id")

// AddressService implements address.Service over the backend.
type AddressService struct{ c *Client }

// FindByUser returns the user's address.
func (s *AddressService) FindByUser(ctx context.Context, userID int64) (*address.Address, error) {
	var dto addressDTO
	if err := s.c.do(ctx, "get address by user", http.MethodGet, "/api/addresses/user/"+id(userID), nil, &dto); err != nil {
		return nil, mapNotFound(err, address.ErrNotFound)
	}
	if dto.ID == 0 {
		return nil, address.ErrNotFound
	}
	return dto.domain(), nil
}

// GetByID returns an address by id.
func (s *AddressService) GetByID(ctx context.Context, addressID int64) (*address.Address, error) {
	var dto addressDTO
	if err := s.c.do(ctx, "get address", http.MethodGet, "/api/addresses/"+id(addressID), nil, &dto); err != nil {
		return nil, mapNotFound(err, address.ErrNotFound)
	}
	return dto.domain(), nil
}

// Create stores a new address.
func (s *AddressService) Create(ctx context.Context, a *address.Address) (*address.Address, error) {
	in := addressToDTO(a)
	in.ID = 0
	var out addressDTO
	if err := s.c.do(ctx, "create address", http.MethodPost, "/api/addresses/create", in, &out); err != nil {
		return nil, unexpected("create address", err)
	}
	if out.ID == 0 {
		return nil, &TransportError{Op: "create address", Err: errNoID}
	}
	return out.domain(), nil
}

// Update replaces an existing address.
func (s *AddressService) Update(ctx context.Context, a *address.Address) (*address.Address, error) {
	var out addressDTO
	if err := s.c.do(ctx, "update address", http.MethodPut, "/api/addresses/update", addressToDTO(a), &out); err != nil {
		return nil, mapNotFound(err, address.ErrNotFound)
	}
	return out.domain(), nil
}

// CartService implements cart.Service over the backend.
type CartService struct{ c *Client }

// GetByUser returns the user's active cart.
func (s *CartService) GetByUser(ctx context.Context, userID int64) (*cart.Cart, error) {
	var dto cartDTO
	if err := s.c.do(ctx, "get cart", http.MethodGet, "/api/cart/user/"+id(userID), nil, &dto); err != nil {
		return nil, mapNotFound(err, cart.ErrNotFound)
	}
	if dto.CartID == 0 {
		return nil, cart.ErrNotFound
	}
	return dto.domain(userID), nil
}

// Clear empties a cart.
func (s *CartService) Clear(ctx context.Context, cartID int64) error {
	err := s.c.do(ctx, "clear cart", http.MethodDelete, "/api/cart/clear/"+id(cartID), nil, nil)
	return mapNotFound(err, cart.ErrNotFound)
}

// OrderService implements order.Service over the backend.
type OrderService struct{ c *Client }

// Create places an order.
func (s *OrderService) Create(ctx context.Context, req order.CreateRequest) (*order.Order, error) {
	in := orderCreateDTO{
		RegularUserID:     req.UserID,
		ShippingAddressID: req.AddressID,
		DeliveryAddress:   req.DeliveryAddress,
		OrderItems:        make([]orderItemCreateDTO, len(req.Items)),
	}
	for i, it := range req.Items {
		in.OrderItems[i] = orderItemCreateDTO{
			BookID:      it.BookID,
			Quantity:    it.Quantity,
			OrderStatus: string(it.Status),
		}
	}

	var out orderDTO
	if err := s.c.do(ctx, "create order", http.MethodPost, "/api/orders/create", in, &out); err != nil {
		return nil, unexpected("create order", err)
	}
	if out.OrderID == 0 {
		return nil, &TransportError{Op: "create order", Err: errNoID}
	}
	o := out.domain()
	if o.UserID == 0 {
		o.UserID = req.UserID
	}
	if o.DeliveryAddress == "" {
		o.DeliveryAddress = req.DeliveryAddress
	}
	if o.ShippingAddressID == 0 {
		o.ShippingAddressID = req.AddressID
	}
	o.Items = req.Items
	return &o, nil
}

// ListByUser returns all orders placed by the user.
func (s *OrderService) ListByUser(ctx context.Context, userID int64) ([]order.Order, error) {
	var dtos []orderDTO
	if err := s.c.do(ctx, "list orders", http.MethodGet, "/api/orders/getByUserId/"+id(userID), nil, &dtos); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, err
	}
	orders := make([]order.Order, len(dtos))
	for i, d := range dtos {
		orders[i] = d.domain()
		if orders[i].UserID == 0 {
			orders[i].UserID = userID
		}
	}
	return orders, nil
}

// Items returns the line items of an order.
func (s *OrderService) Items(ctx context.Context, orderID int64) ([]order.Item, error) {
	var dtos []orderItemDTO
	if err := s.c.do(ctx, "get order items", http.MethodGet, "/api/orderItems/getByOrderId/"+id(orderID), nil, &dtos); err != nil {
		return nil, mapNotFound(err, order.ErrNotFound)
	}
	items := make([]order.Item, len(dtos))
	for i, d := range dtos {
		items[i] = d.domain()
	}
	return items, nil
}

// PaymentService implements payment.Service over the backend.
type PaymentService struct{ c *Client }

// Create records a payment for an order.
func (s *PaymentService) Create(ctx context.Context, req payment.CreateRequest) (*payment.Payment, error) {
	in := paymentCreateDTO{
		UserID:        req.UserID,
		OrderID:       req.OrderID,
		PaymentMethod: string(req.Method),
	}
	var out paymentDTO
	if err := s.c.do(ctx, "create payment", http.MethodPost, "/api/payments/create", in, &out); err != nil {
		return nil, unexpected("create payment", err)
	}
	p, err := out.domain(req)
	if err != nil {
		return nil, &TransportError{Op: "create payment", Err: err}
	}
	return p, nil
}

// BookService implements book.Reader over the backend.
type BookService struct{ c *Client }

// GetByID returns a book by id.
func (s *BookService) GetByID(ctx context.Context, bookID int64) (*book.Book, error) {
	var dto bookDTO
	if err := s.c.do(ctx, "get book", http.MethodGet, "/api/book/read/"+id(bookID), nil, &dto); err != nil {
		return nil, mapNotFound(err, book.ErrNotFound)
	}
	return dto.domain(), nil
}
