package payment

import (
	"context"
	"strings"
	"time"
)

// Method enumerates the supported payment methods.
type Method string

const (
	// MethodCard is a card payment.
	MethodCard Method = "CARD"
	// MethodEFT is an electronic funds transfer.
	MethodEFT Method = "EFT"
)

// ParseMethod maps a client-supplied tag to a Method. It accepts the backend
// tags as well as the lowercase form values "card" and "eft".
func ParseMethod(s string) (Method, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(MethodCard):
		return MethodCard, true
	case string(MethodEFT):
		return MethodEFT, true
	}
	return "", false
}

// Payment is a persisted payment record for an order.
type Payment struct {
	ID        int64
	UserID    int64
	OrderID   int64
	Method    Method
	CreatedAt time.Time
}

// CreateRequest holds the input for recording a payment.
type CreateRequest struct {
	UserID  int64
	OrderID int64
	Method  Method
}

// Service is the remote payment ledger.
type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Payment, error)
}
