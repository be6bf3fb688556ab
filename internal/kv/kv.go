// Package kv defines the string-keyed blob storage used for checkout state
// and order address snapshots, together with its key namespaces and codecs.
package kv

import (
	"context"
	"strconv"
	"sync"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned by Store.Get when the key is absent or expired.
var ErrNotFound = errors.New("key not found")

// Store is a string-keyed blob store. Implementations must be safe for
// concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Key namespaces. Session keys are scoped to a user because the service
// serves many users from one process.
const (
	sessionOrderAddressPrefix = "currentOrderAddress:"
	durableOrderAddressPrefix = "orderAddress:"
	checkoutFormPrefix        = "checkoutData:"
)

// SessionOrderAddressKey is the session-store key holding the snapshot of the
// user's most recent order address.
func SessionOrderAddressKey(userID int64) string {
	return sessionOrderAddressPrefix + strconv.FormatInt(userID, 10)
}

// DurableOrderAddressKey is the durable-store key holding the address
// snapshot of a single order.
func DurableOrderAddressKey(orderID int64) string {
	return durableOrderAddressPrefix + strconv.FormatInt(orderID, 10)
}

// CheckoutFormKey is the session-store key holding the user's in-progress
// checkout form.
func CheckoutFormKey(userID int64) string {
	return checkoutFormPrefix + strconv.FormatInt(userID, 10)
}

var _ Store = (*Memory)(nil)

// Memory is an in-process Store.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Get returns a copy of the stored value.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set stores a copy of value under key.
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = append([]byte(nil), value...)
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}
