package invoice

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/booklify-checkout/internal/domain/address"
	"github.com/xenking/booklify-checkout/internal/domain/order"
	"github.com/xenking/booklify-checkout/internal/kv"
)

// Source identifies where an invoice delivery address came from.
type Source string

// Address sources in precedence order.
const (
	SourceSessionSnapshot Source = "session_snapshot"
	SourceDurableSnapshot Source = "durable_snapshot"
	SourceCheckoutForm    Source = "checkout_form"
	SourceCustomerAddress Source = "customer_address"
	SourceOrderDelivery   Source = "order_delivery_address"
	SourceOrderShipping   Source = "order_shipping_address"
	SourceAddressLookup   Source = "address_lookup"
	SourceFallback        Source = "fallback"
)

// Address markers used when nothing better is known.
const (
	NoAddress          = "No address provided"
	AddressUnavailable = "Address not available"
	AddressFetchFailed = "Address fetch failed"
)

// ResolveContext carries the lookups available to resolvers. Nil fields
// disable the resolvers that need them.
type ResolveContext struct {
	UserID          int64
	Session         kv.Store
	Durable         kv.Store
	Addresses       address.Service
	CustomerAddress *address.Address
}

// Resolver is one step of the delivery address cascade. Resolve reports
// false when it has nothing to offer for the order.
type Resolver struct {
	Source  Source
	Resolve func(ctx context.Context, o *order.Order, rc *ResolveContext) (string, bool)
}

// DefaultResolvers returns the cascade in precedence order. Snapshots come
// first: they hold the address used when the order was placed, while the
// user's profile address may have changed since.
func DefaultResolvers() []Resolver {
	return []Resolver{
		{Source: SourceSessionSnapshot, Resolve: fromSessionSnapshot},
		{Source: SourceDurableSnapshot, Resolve: fromDurableSnapshot},
		{Source: SourceCheckoutForm, Resolve: fromCheckoutForm},
		{Source: SourceCustomerAddress, Resolve: fromCustomerAddress},
		{Source: SourceOrderDelivery, Resolve: fromOrderDelivery},
		{Source: SourceOrderShipping, Resolve: fromOrderShipping},
		{Source: SourceAddressLookup, Resolve: fromAddressLookup},
		{Source: SourceFallback, Resolve: fallback},
	}
}

// ResolveAddress evaluates resolvers in order and returns the first match.
func ResolveAddress(ctx context.Context, resolvers []Resolver, o *order.Order, rc *ResolveContext) (string, Source) {
	for _, r := range resolvers {
		if v, ok := r.Resolve(ctx, o, rc); ok {
			return v, r.Source
		}
	}
	return NoAddress, SourceFallback
}

func fromSessionSnapshot(ctx context.Context, o *order.Order, rc *ResolveContext) (string, bool) {
	if rc.Session == nil {
		return "", false
	}
	snap, ok := loadSnapshot(ctx, rc.Session, kv.SessionOrderAddressKey(rc.UserID))
	if !ok || snap.OrderID != o.ID {
		return "", false
	}
	return snap.DeliveryAddress, snap.DeliveryAddress != ""
}

func fromDurableSnapshot(ctx context.Context, o *order.Order, rc *ResolveContext) (string, bool) {
	if rc.Durable == nil {
		return "", false
	}
	snap, ok := loadSnapshot(ctx, rc.Durable, kv.DurableOrderAddressKey(o.ID))
	if !ok {
		return "", false
	}
	return snap.DeliveryAddress, snap.DeliveryAddress != ""
}

func loadSnapshot(ctx context.Context, s kv.Store, key string) (kv.AddressSnapshot, bool) {
	snap, err := kv.LoadSnapshot(ctx, s, key)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			zctx.From(ctx).Warn("Read address snapshot", zap.String("key", key), zap.Error(err))
		}
		return kv.AddressSnapshot{}, false
	}
	return snap, true
}

func fromCheckoutForm(ctx context.Context, _ *order.Order, rc *ResolveContext) (string, bool) {
	if rc.Session == nil {
		return "", false
	}
	data, err := rc.Session.Get(ctx, kv.CheckoutFormKey(rc.UserID))
	if err != nil {
		return "", false
	}
	a, err := kv.DecodeAddress(data)
	if err != nil {
		zctx.From(ctx).Warn("Read checkout form", zap.Error(err))
		return "", false
	}
	return nonEmpty(a.FormatCompact())
}

// fromCustomerAddress prints the profile address without suburb or country,
// the way account addresses are shown elsewhere.
func fromCustomerAddress(_ context.Context, _ *order.Order, rc *ResolveContext) (string, bool) {
	a := rc.CustomerAddress
	if a == nil {
		return "", false
	}
	return nonEmpty(joinNonEmpty(a.Street, a.City, a.Province, a.PostalCode))
}

func fromOrderDelivery(_ context.Context, o *order.Order, _ *ResolveContext) (string, bool) {
	return nonEmpty(o.DeliveryAddress)
}

func fromOrderShipping(_ context.Context, o *order.Order, _ *ResolveContext) (string, bool) {
	if o.ShippingAddress == nil {
		return "", false
	}
	return nonEmpty(o.ShippingAddress.FormatCompact())
}

// statusCoder is implemented by errors that carry a response status.
type statusCoder interface {
	StatusCode() int
}

// fromAddressLookup fetches the shipping address by id. Once an id is present
// it always yields a value: the address, or a marker describing the failure.
func fromAddressLookup(ctx context.Context, o *order.Order, rc *ResolveContext) (string, bool) {
	if o.ShippingAddressID == 0 || rc.Addresses == nil {
		return "", false
	}
	a, err := rc.Addresses.GetByID(ctx, o.ShippingAddressID)
	if err != nil {
		var sc statusCoder
		if errors.Is(err, address.ErrNotFound) || errors.As(err, &sc) {
			zctx.From(ctx).Warn("Shipping address not available",
				zap.Int64("address_id", o.ShippingAddressID), zap.Error(err))
			return AddressUnavailable, true
		}
		zctx.From(ctx).Error("Shipping address fetch failed",
			zap.Int64("address_id", o.ShippingAddressID), zap.Error(err))
		return AddressFetchFailed, true
	}
	if a == nil {
		return AddressUnavailable, true
	}
	return a.FormatCompact(), true
}

func fallback(context.Context, *order.Order, *ResolveContext) (string, bool) {
	return NoAddress, true
}

func nonEmpty(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != ""
}

func joinNonEmpty(parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}
