// Package notify is a process-wide publish/subscribe bus for inventory
// change notifications emitted after a purchase.
package notify

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"go.uber.org/multierr"

	"github.com/xenking/booklify-checkout/internal/domain/book"
)

// Kind identifies an event type.
type Kind string

const (
	// KindInventoryUpdated is published once per purchase with all purchased books.
	KindInventoryUpdated Kind = "inventoryUpdated"
	// KindClientInventoryDecrement is published per purchased book.
	KindClientInventoryDecrement Kind = "inventoryUpdatedClient"
)

// Event is a bus message.
type Event interface {
	Kind() Kind
}

// InventoryUpdated signals that stock changed for the listed books.
type InventoryUpdated struct {
	BookIDs []int64
}

// Kind implements Event.
func (InventoryUpdated) Kind() Kind { return KindInventoryUpdated }

// ClientInventoryDecrement carries the current book record and the quantity
// just sold so subscribers can adjust displayed availability.
type ClientInventoryDecrement struct {
	Book         book.Book
	QuantitySold int
}

// Kind implements Event.
func (ClientInventoryDecrement) Kind() Kind { return KindClientInventoryDecrement }

// Handler receives published events.
type Handler func(ctx context.Context, ev Event) error

// Publisher is the producer side of the bus.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type subscription struct {
	id int
	h  Handler
}

var _ Publisher = (*Bus)(nil)

// Bus delivers events synchronously to the handlers subscribed to their kind,
// in subscription order.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[Kind][]subscription
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Kind][]subscription)}
}

// Subscribe registers h for kind and returns a function that removes it.
func (b *Bus) Subscribe(kind Kind, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[kind] = append(b.subs[kind], subscription{id: id, h: h})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()

			subs := b.subs[kind]
			for i, s := range subs {
				if s.id == id {
					b.subs[kind] = append(subs[:i:i], subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish delivers ev to every handler of its kind. A failing or panicking
// handler does not stop delivery to the rest; all failures are joined into
// the returned error.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs[ev.Kind()]))
	copy(subs, b.subs[ev.Kind()])
	b.mu.RUnlock()

	var err error
	for _, s := range subs {
		err = multierr.Append(err, deliver(ctx, s.h, ev))
	}
	return err
}

func deliver(ctx context.Context, h Handler, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("%s handler panicked: %v", ev.Kind(), r)
		}
	}()
	return h(ctx, ev)
}
