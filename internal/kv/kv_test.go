package kv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/booklify-checkout/internal/domain/address"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	value := []byte("v1")
	require.NoError(t, m.Set(ctx, "k", value))
	value[0] = 'x'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got, "store keeps its own copy")

	require.NoError(t, m.Delete(ctx, "k"))
	require.NoError(t, m.Delete(ctx, "k"))
	_, err = m.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "currentOrderAddress:7", SessionOrderAddressKey(7))
	assert.Equal(t, "orderAddress:43", DurableOrderAddressKey(43))
	assert.Equal(t, "checkoutData:7", CheckoutFormKey(7))
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	snap := AddressSnapshot{
		OrderID:         43,
		DeliveryAddress: "12 Long Street, Gardens, Cape Town, Western Cape, South Africa, 8001",
		Timestamp:       time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}

	require.NoError(t, SaveSnapshot(ctx, m, DurableOrderAddressKey(43), snap))

	got, err := LoadSnapshot(ctx, m, DurableOrderAddressKey(43))
	require.NoError(t, err)
	assert.Equal(t, snap, got)

	_, err = LoadSnapshot(ctx, m, DurableOrderAddressKey(44))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDecodeSnapshot(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantID  int64
		wantErr bool
	}{
		{name: "numeric id", input: `{"orderId":43,"deliveryAddress":"x","timestamp":"2025-06-15T12:00:00Z"}`, wantID: 43},
		{name: "string id", input: `{"orderId":"43","deliveryAddress":"x"}`, wantID: 43},
		{name: "unknown fields skipped", input: `{"extra":{"a":[1,2]},"orderId":5}`, wantID: 5},
		{name: "malformed", input: `{"orderId":`, wantErr: true},
		{name: "bad timestamp", input: `{"orderId":1,"timestamp":"yesterday"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := DecodeSnapshot([]byte(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, s.OrderID)
		})
	}
}

func TestAddressCodec(t *testing.T) {
	a := address.Address{
		UserID:     7,
		Street:     "12 Long Street",
		City:       "Cape Town",
		Province:   "Western Cape",
		Country:    "South Africa",
		PostalCode: "8001",
	}

	got, err := DecodeAddress(EncodeAddress(a))
	require.NoError(t, err)
	assert.Equal(t, a, got)

	got, err = DecodeAddress([]byte(`{"street":"1 Main","suburb":null,"userId":"9"}`))
	require.NoError(t, err)
	assert.Equal(t, "1 Main", got.Street)
	assert.Empty(t, got.Suburb)
	assert.Equal(t, int64(9), got.UserID)
}
