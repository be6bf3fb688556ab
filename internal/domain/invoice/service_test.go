package invoice

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/booklify-checkout/internal/domain/address"
	"github.com/xenking/booklify-checkout/internal/domain/order"
)

type mockOrders struct {
	orders   []order.Order
	items    []order.Item
	listErr  error
	itemsErr error
}

func (m *mockOrders) Create(context.Context, order.CreateRequest) (*order.Order, error) {
	return nil, errors.New("not implemented")
}

func (m *mockOrders) ListByUser(context.Context, int64) ([]order.Order, error) {
	return m.orders, m.listErr
}

func (m *mockOrders) Items(context.Context, int64) ([]order.Item, error) {
	return m.items, m.itemsErr
}

type profileAddresses struct {
	mockAddresses
	profile *address.Address
	err     error
}

func (p *profileAddresses) FindByUser(context.Context, int64) (*address.Address, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.profile == nil {
		return nil, address.ErrNotFound
	}
	return p.profile, nil
}

func TestInvoiceForOrder(t *testing.T) {
	orders := &mockOrders{
		orders: []order.Order{{ID: 42, UserID: 7}, {ID: 43, UserID: 7}},
		items:  []order.Item{{Quantity: 1, Price: price("115")}},
	}
	addrs := &profileAddresses{profile: profile()}
	svc := NewService(orders, addrs, newTestBuilder(Sources{}))

	inv, err := svc.InvoiceForOrder(context.Background(), 7, 43, User{FullName: "Thandi Nkosi"})
	require.NoError(t, err)

	assert.Equal(t, int64(43), inv.Order.ID)
	assert.Equal(t, int64(7), inv.Customer.ID)
	assert.Equal(t, "9 Main Road, Cape Town, Western Cape, 7700", inv.Customer.Address)
	assert.Equal(t, SourceCustomerAddress, inv.AddressSource)
	assertClose(t, price("15"), inv.Totals.TaxAmount)
}

func TestInvoiceForOrder_Errors(t *testing.T) {
	tests := []struct {
		name   string
		orders *mockOrders
		want   error
	}{
		{
			name:   "order not owned by user",
			orders: &mockOrders{orders: []order.Order{{ID: 42}}},
			want:   order.ErrNotFound,
		},
		{
			name:   "no items",
			orders: &mockOrders{orders: []order.Order{{ID: 43}}},
			want:   ErrNoItems,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.orders, &profileAddresses{}, newTestBuilder(Sources{}))

			_, err := svc.InvoiceForOrder(context.Background(), 7, 43, User{})
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestInvoiceForOrder_ItemsError(t *testing.T) {
	itemsErr := errors.New("timeout")
	orders := &mockOrders{orders: []order.Order{{ID: 43}}, itemsErr: itemsErr}
	svc := NewService(orders, nil, newTestBuilder(Sources{}))

	_, err := svc.InvoiceForOrder(context.Background(), 7, 43, User{})
	require.ErrorIs(t, err, itemsErr)
}

func TestInvoiceForOrder_ProfileLookupFailureIsIgnored(t *testing.T) {
	orders := &mockOrders{
		orders: []order.Order{{ID: 43, DeliveryAddress: "12 Long Street"}},
		items:  []order.Item{{Quantity: 1, Price: price("10")}},
	}
	addrs := &profileAddresses{err: errors.New("backend down")}
	svc := NewService(orders, addrs, newTestBuilder(Sources{}))

	inv, err := svc.InvoiceForOrder(context.Background(), 7, 43, User{})
	require.NoError(t, err)
	assert.Equal(t, "12 Long Street", inv.Customer.Address)
}
