package kv

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/booklify-checkout/internal/domain/address"
)

// AddressSnapshot records the delivery address used when an order was placed.
type AddressSnapshot struct {
	OrderID         int64
	DeliveryAddress string
	Timestamp       time.Time
}

// EncodeSnapshot serializes s as {"orderId","deliveryAddress","timestamp"}.
func EncodeSnapshot(s AddressSnapshot) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("orderId")
	e.Int64(s.OrderID)
	e.FieldStart("deliveryAddress")
	e.Str(s.DeliveryAddress)
	e.FieldStart("timestamp")
	e.Str(s.Timestamp.UTC().Format(time.RFC3339Nano))
	e.ObjEnd()
	return e.Bytes()
}

// DecodeSnapshot parses a snapshot. The order id may be encoded as a number
// or as a numeric string.
func DecodeSnapshot(data []byte) (AddressSnapshot, error) {
	var s AddressSnapshot
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "orderId":
			id, err := decodeID(d)
			if err != nil {
				return errors.Wrap(err, "orderId")
			}
			s.OrderID = id
		case "deliveryAddress":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "deliveryAddress")
			}
			s.DeliveryAddress = v
		case "timestamp":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "timestamp")
			}
			ts, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				return errors.Wrap(err, "parse timestamp")
			}
			s.Timestamp = ts
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return AddressSnapshot{}, errors.Wrap(err, "decode address snapshot")
	}
	return s, nil
}

// EncodeAddress serializes a checkout form address.
func EncodeAddress(a address.Address) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("userId", func(e *jx.Encoder) { e.Int64(a.UserID) })
		e.Field("street", func(e *jx.Encoder) { e.Str(a.Street) })
		e.Field("suburb", func(e *jx.Encoder) { e.Str(a.Suburb) })
		e.Field("city", func(e *jx.Encoder) { e.Str(a.City) })
		e.Field("province", func(e *jx.Encoder) { e.Str(a.Province) })
		e.Field("country", func(e *jx.Encoder) { e.Str(a.Country) })
		e.Field("postalCode", func(e *jx.Encoder) { e.Str(a.PostalCode) })
	})
	return e.Bytes()
}

// DecodeAddress parses a checkout form address written by EncodeAddress.
func DecodeAddress(data []byte) (address.Address, error) {
	var a address.Address
	fields := map[string]*string{
		"street":     &a.Street,
		"suburb":     &a.Suburb,
		"city":       &a.City,
		"province":   &a.Province,
		"country":    &a.Country,
		"postalCode": &a.PostalCode,
	}
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key == "userId" {
			id, err := decodeID(d)
			a.UserID = id
			return err
		}
		dst, ok := fields[key]
		if !ok {
			return d.Skip()
		}
		if d.Next() == jx.Null {
			return d.Null()
		}
		v, err := d.Str()
		if err != nil {
			return errors.Wrap(err, key)
		}
		*dst = v
		return nil
	})
	if err != nil {
		return address.Address{}, errors.Wrap(err, "decode checkout address")
	}
	return a, nil
}

func decodeID(d *jx.Decoder) (int64, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return 0, err
		}
		return strconv.ParseInt(s, 10, 64)
	case jx.Null:
		return 0, d.Null()
	default:
		return d.Int64()
	}
}

// SaveSnapshot encodes s and stores it under key.
func SaveSnapshot(ctx context.Context, store Store, key string, s AddressSnapshot) error {
	if err := store.Set(ctx, key, EncodeSnapshot(s)); err != nil {
		return errors.Wrapf(err, "store snapshot %s", key)
	}
	return nil
}

// LoadSnapshot reads and decodes the snapshot stored under key. It returns
// ErrNotFound when the key is absent.
func LoadSnapshot(ctx context.Context, store Store, key string) (AddressSnapshot, error) {
	data, err := store.Get(ctx, key)
	if err != nil {
		return AddressSnapshot{}, err
	}
	return DecodeSnapshot(data)
}
