package backend

import (
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/booklify-checkout/internal/domain/address"
	"github.com/xenking/booklify-checkout/internal/domain/book"
	"github.com/xenking/booklify-checkout/internal/domain/cart"
	"github.com/xenking/booklify-checkout/internal/domain/order"
	"github.com/xenking/booklify-checkout/internal/domain/payment"
)

// Wire types mirror the backend's JSON. They are converted to domain types
// at the package boundary.

type userRef struct {
	ID int64 `json:"id"`
}

type addressDTO struct {
	ID              int64    `json:"id,omitempty"`
	Street          string   `json:"street"`
	Suburb          string   `json:"suburb"`
	City            string   `json:"city"`
	Province        string   `json:"province"`
	Country         string   `json:"country"`
	PostalCode      string   `json:"postalCode"`
	User            *userRef `json:"user,omitempty"`
	IsOrderSpecific bool     `json:"isOrderSpecific,omitempty"`
	OrderTimestamp  string   `json:"orderTimestamp,omitempty"`
}

func addressToDTO(a *address.Address) addressDTO {
	dto := addressDTO{
		ID:              a.ID,
		Street:          a.Street,
		Suburb:          a.Suburb,
		City:            a.City,
		Province:        a.Province,
		Country:         a.Country,
		PostalCode:      a.PostalCode,
		IsOrderSpecific: a.OrderSpecific,
	}
	if a.UserID != 0 {
		dto.User = &userRef{ID: a.UserID}
	}
	if !a.OrderTimestamp.IsZero() {
		dto.OrderTimestamp = a.OrderTimestamp.UTC().Format(time.RFC3339Nano)
	}
	return dto
}

func (d addressDTO) domain() *address.Address {
	a := &address.Address{
		ID:            d.ID,
		Street:        d.Street,
		Suburb:        d.Suburb,
		City:          d.City,
		Province:      d.Province,
		Country:       d.Country,
		PostalCode:    d.PostalCode,
		OrderSpecific: d.IsOrderSpecific,
	}
	if d.User != nil {
		a.UserID = d.User.ID
	}
	if t, ok := parseTime(d.OrderTimestamp); ok {
		a.OrderTimestamp = t
	}
	return a
}

type bookDTO struct {
	BookID        int64           `json:"bookID"`
	Title         string          `json:"title"`
	Author        string          `json:"author"`
	ISBN          string          `json:"isbn"`
	BookCondition string          `json:"bookCondition"`
	Price         decimal.Decimal `json:"price"`
	Quantity      int             `json:"quantity"`
}

func (d bookDTO) domain() *book.Book {
	return &book.Book{
		ID:        d.BookID,
		Title:     d.Title,
		Author:    d.Author,
		ISBN:      d.ISBN,
		Condition: d.BookCondition,
		Price:     d.Price,
		Quantity:  d.Quantity,
	}
}

type cartItemDTO struct {
	Book     bookDTO `json:"book"`
	Quantity int     `json:"quantity"`
}

type cartDTO struct {
	CartID    int64         `json:"cartId"`
	User      *userRef      `json:"user,omitempty"`
	CartItems []cartItemDTO `json:"cartItems"`
}

func (d cartDTO) domain(userID int64) *cart.Cart {
	c := &cart.Cart{ID: d.CartID, UserID: userID, Items: make([]cart.Item, 0, len(d.CartItems))}
	if d.User != nil {
		c.UserID = d.User.ID
	}
	for _, it := range d.CartItems {
		c.Items = append(c.Items, cart.Item{BookID: it.Book.BookID, Quantity: it.Quantity})
	}
	return c
}

type orderItemCreateDTO struct {
	BookID      int64  `json:"bookId"`
	Quantity    int    `json:"quantity"`
	OrderStatus string `json:"orderStatus"`
}

type orderCreateDTO struct {
	RegularUserID     int64                `json:"regularUserId"`
	ShippingAddressID int64                `json:"shippingAddressId"`
	DeliveryAddress   string               `json:"deliveryAddress"`
	OrderItems        []orderItemCreateDTO `json:"orderItems"`
}

type orderDTO struct {
	OrderID           int64       `json:"orderId"`
	RegularUserID     int64       `json:"regularUserId"`
	ShippingAddressID int64       `json:"shippingAddressId"`
	DeliveryAddress   string      `json:"deliveryAddress"`
	ShippingAddress   *addressDTO `json:"shippingAddress"`
	OrderStatus       string      `json:"orderStatus"`
	PaymentMethod     string      `json:"paymentMethod"`
	OrderDate         string      `json:"orderDate"`
}

func (d orderDTO) domain() order.Order {
	o := order.Order{
		ID:                d.OrderID,
		UserID:            d.RegularUserID,
		ShippingAddressID: d.ShippingAddressID,
		DeliveryAddress:   d.DeliveryAddress,
		Status:            d.OrderStatus,
		PaymentMethod:     d.PaymentMethod,
	}
	if d.ShippingAddress != nil {
		o.ShippingAddress = d.ShippingAddress.domain()
	}
	if t, ok := parseTime(d.OrderDate); ok {
		o.OrderDate = t
	}
	return o
}

type orderItemDTO struct {
	OrderItemID int64           `json:"orderItemId"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	OrderStatus string          `json:"orderStatus"`
	Book        *bookDTO        `json:"book"`
}

func (d orderItemDTO) domain() order.Item {
	it := order.Item{
		ID:       d.OrderItemID,
		Quantity: d.Quantity,
		Price:    d.Price,
		Status:   order.Status(d.OrderStatus),
	}
	if d.Book != nil {
		it.BookID = d.Book.BookID
		it.Book = d.Book.domain()
	}
	return it
}

type paymentCreateDTO struct {
	UserID        int64  `json:"userId"`
	OrderID       int64  `json:"orderId"`
	PaymentMethod string `json:"paymentMethod"`
}

type paymentDTO struct {
	PaymentID     int64  `json:"paymentId"`
	UserID        int64  `json:"userId"`
	OrderID       int64  `json:"orderId"`
	PaymentMethod string `json:"paymentMethod"`
	PaymentDate   string `json:"paymentDate"`
}

func (d paymentDTO) domain(req payment.CreateRequest) (*payment.Payment, error) {
	p := &payment.Payment{
		ID:      d.PaymentID,
		UserID:  d.UserID,
		OrderID: d.OrderID,
		Method:  req.Method,
	}
	if p.UserID == 0 {
		p.UserID = req.UserID
	}
	if p.OrderID == 0 {
		p.OrderID = req.OrderID
	}
	if d.PaymentMethod != "" {
		m, ok := payment.ParseMethod(d.PaymentMethod)
		if !ok {
			return nil, errors.Errorf("unknown payment method %q", d.PaymentMethod)
		}
		p.Method = m
	}
	if t, ok := parseTime(d.PaymentDate); ok {
		p.CreatedAt = t
	}
	return p, nil
}

// The backend emits dates with and without a zone, and sometimes date-only.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
