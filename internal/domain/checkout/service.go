package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/booklify-checkout/internal/domain/address"
	"github.com/xenking/booklify-checkout/internal/domain/book"
	"github.com/xenking/booklify-checkout/internal/domain/cart"
	"github.com/xenking/booklify-checkout/internal/domain/order"
	"github.com/xenking/booklify-checkout/internal/domain/payment"
	"github.com/xenking/booklify-checkout/internal/kv"
	"github.com/xenking/booklify-checkout/internal/notify"
)

// Sentinel errors for checkout validation.
var (
	ErrNoCart        = errors.New("no cart found")
	ErrEmptyCart     = errors.New("cart is empty")
	ErrInvalidMethod = errors.New("payment method must be CARD or EFT")
)

// PaymentError reports a payment failure for an order that was already
// created. The order is left in place so the payment can be retried.
type PaymentError struct {
	OrderID int64
	Err     error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment for order %d failed: %v", e.OrderID, e.Err)
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

// Best-effort task names reported in Result.Failures.
const (
	TaskClearCart         = "clear_cart"
	TaskPublishInventory  = "publish_inventory_updated"
	TaskFetchBook         = "fetch_book"
	TaskPublishDecrement  = "publish_client_decrement"
	TaskSessionSnapshot   = "store_session_snapshot"
	TaskDurableSnapshot   = "store_durable_snapshot"
	TaskClearCheckoutForm = "clear_checkout_form"
)

const defaultBookParallelism = 4

// TaskFailure is a failed post-payment side effect. These never fail the
// purchase.
type TaskFailure struct {
	Task   string
	BookID int64
	Err    error
}

// SubmitRequest holds the input for submitting a payment.
type SubmitRequest struct {
	UserID int64
	Method payment.Method
	// Address overrides the saved checkout form when set.
	Address *address.Address
}

// Result holds the output of a successful submission.
type Result struct {
	Payment         *payment.Payment
	Order           *order.Order
	DeliveryAddress string
	Failures        []TaskFailure
}

// Deps are the collaborators of the checkout Service.
type Deps struct {
	Addresses address.Service
	Carts     cart.Service
	Orders    order.Service
	Payments  payment.Service
	Books     book.Reader
	Bus       notify.Publisher
	// Session holds per-user checkout state and the latest order snapshot.
	Session kv.Store
	// Durable holds order address snapshots keyed by order id.
	Durable kv.Store
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithBookFetchParallelism bounds the concurrent book fetches made while
// emitting per-book notifications. 1 makes them sequential.
func WithBookFetchParallelism(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// WithTracerProvider enables tracing of the checkout steps.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer("checkout") }
}

// WithMeterProvider enables checkout metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) {
		meter := mp.Meter("checkout")
		if c, err := meter.Int64Counter("checkout.payments",
			metric.WithDescription("Payments submitted, by outcome")); err == nil {
			s.payments = c
		}
		if c, err := meter.Int64Counter("checkout.side_effect.failures",
			metric.WithDescription("Failed best-effort post-payment tasks")); err == nil {
			s.sideEffectFailures = c
		}
	}
}

// Service converts a user's cart into a persisted order and payment.
type Service struct {
	deps        Deps
	now         func() time.Time
	parallelism int

	tracer             trace.Tracer
	payments           metric.Int64Counter
	sideEffectFailures metric.Int64Counter
}

// NewService creates a checkout Service.
func NewService(deps Deps, opts ...Option) *Service {
	s := &Service{
		deps:               deps,
		now:                time.Now,
		parallelism:        defaultBookParallelism,
		tracer:             tracenoop.NewTracerProvider().Tracer("checkout"),
		payments:           metricnoop.Int64Counter{},
		sideEffectFailures: metricnoop.Int64Counter{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveCheckoutForm stores the user's in-progress checkout address in the
// session store.
func (s *Service) SaveCheckoutForm(ctx context.Context, userID int64, a address.Address) error {
	a.UserID = userID
	if err := s.deps.Session.Set(ctx, kv.CheckoutFormKey(userID), kv.EncodeAddress(a)); err != nil {
		return errors.Wrap(err, "save checkout form")
	}
	return nil
}

// CheckoutForm returns the saved checkout address, or kv.ErrNotFound.
func (s *Service) CheckoutForm(ctx context.Context, userID int64) (*address.Address, error) {
	data, err := s.deps.Session.Get(ctx, kv.CheckoutFormKey(userID))
	if err != nil {
		return nil, err
	}
	a, err := kv.DecodeAddress(data)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// SubmitPayment resolves and persists the shipping address, converts the cart
// into an order, records the payment, and then runs the post-payment side
// effects. Steps run strictly in order; each needs the id produced by the
// previous one.
//
// Validation and missing-cart errors abort before any order is written. From
// the order step on, cancellation of ctx is ignored. An
// order creation failure is returned unchanged. A payment failure is returned
// as *PaymentError and leaves the order in place. Side-effect failures are
// reported in Result.Failures only.
func (s *Service) SubmitPayment(ctx context.Context, req SubmitRequest) (res *Result, err error) {
	ctx, span := s.tracer.Start(ctx, "checkout.SubmitPayment",
		trace.WithAttributes(attribute.Int64("user.id", req.UserID)))
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "failure"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		s.payments.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
		span.End()
	}()

	lg := zctx.From(ctx).With(zap.Int64("user_id", req.UserID))

	method, ok := payment.ParseMethod(string(req.Method))
	if !ok {
		return nil, ErrInvalidMethod
	}

	// Address resolution.
	addr := s.resolveAddress(ctx, req)
	if err := addr.Validate(); err != nil {
		return nil, err
	}
	addr.OrderSpecific = true
	addr.OrderTimestamp = s.now()

	// Address persistence.
	saved, err := s.persistAddress(ctx, addr)
	if err != nil {
		return nil, err
	}

	// Cart retrieval.
	c, err := s.activeCart(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	// A written order is always followed through to payment and side effects,
	// even when the caller goes away.
	ctx = context.WithoutCancel(ctx)

	// Order creation.
	items := make([]order.Item, len(c.Items))
	for i, it := range c.Items {
		items[i] = order.Item{
			BookID:   it.BookID,
			Quantity: it.Quantity,
			Status:   order.StatusPending,
		}
	}
	delivery := addr.Format()

	orderCtx, orderSpan := s.tracer.Start(ctx, "checkout.order")
	o, err := s.deps.Orders.Create(orderCtx, order.CreateRequest{
		UserID:          req.UserID,
		AddressID:       saved.ID,
		DeliveryAddress: delivery,
		Items:           items,
	})
	orderSpan.End()
	if err != nil {
		lg.Error("Order creation failed", zap.Error(err))
		return nil, err
	}
	lg = lg.With(zap.Int64("order_id", o.ID))

	// Payment creation.
	payCtx, paySpan := s.tracer.Start(ctx, "checkout.payment")
	p, err := s.deps.Payments.Create(payCtx, payment.CreateRequest{
		UserID:  req.UserID,
		OrderID: o.ID,
		Method:  method,
	})
	paySpan.End()
	if err != nil {
		lg.Error("Payment creation failed, order left pending", zap.Error(err))
		return nil, &PaymentError{OrderID: o.ID, Err: err}
	}

	res = &Result{
		Payment:         p,
		Order:           o,
		DeliveryAddress: delivery,
	}
	res.Failures = s.runSideEffects(ctx, req.UserID, c, o, delivery)
	for _, f := range res.Failures {
		lg.Warn("Post-payment task failed",
			zap.String("task", f.Task),
			zap.Int64("book_id", f.BookID),
			zap.Error(f.Err),
		)
		s.sideEffectFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("task", f.Task)))
	}

	lg.Info("Payment submitted",
		zap.Int64("payment_id", p.ID),
		zap.String("method", string(p.Method)),
		zap.Int("items", len(items)),
		zap.Int("failed_tasks", len(res.Failures)),
	)
	return res, nil
}

// resolveAddress returns the explicit address or, when absent, the saved
// checkout form. A missing or unreadable form yields an empty address, which
// then fails validation.
func (s *Service) resolveAddress(ctx context.Context, req SubmitRequest) address.Address {
	if req.Address != nil {
		a := *req.Address
		a.UserID = req.UserID
		return a
	}
	form, err := s.CheckoutForm(ctx, req.UserID)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			zctx.From(ctx).Warn("Read checkout form", zap.Error(err))
		}
		return address.Address{UserID: req.UserID}
	}
	form.UserID = req.UserID
	return *form
}

// persistAddress updates the user's existing address in place, or creates a
// new one when there is none, the lookup fails, or the update fails.
func (s *Service) persistAddress(ctx context.Context, addr address.Address) (*address.Address, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.address")
	defer span.End()

	lg := zctx.From(ctx)

	existing, err := s.deps.Addresses.FindByUser(ctx, addr.UserID)
	switch {
	case err != nil && !errors.Is(err, address.ErrNotFound):
		lg.Warn("Address lookup failed, creating a new address", zap.Error(err))
	case err == nil && existing != nil && existing.ID != 0:
		merged := address.Merge(*existing, addr)
		updated, err := s.deps.Addresses.Update(ctx, &merged)
		if err == nil {
			if updated == nil || updated.ID == 0 {
				return &merged, nil
			}
			return updated, nil
		}
		lg.Warn("Address update failed, creating a new address",
			zap.Int64("address_id", existing.ID),
			zap.Error(err),
		)
	}

	created, err := s.deps.Addresses.Create(ctx, &addr)
	if err != nil {
		return nil, errors.Wrap(err, "create address")
	}
	return created, nil
}

func (s *Service) activeCart(ctx context.Context, userID int64) (*cart.Cart, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.cart")
	defer span.End()

	c, err := s.deps.Carts.GetByUser(ctx, userID)
	if errors.Is(err, cart.ErrNotFound) || (err == nil && (c == nil || c.ID == 0)) {
		return nil, ErrNoCart
	}
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	if c.Empty() {
		return nil, ErrEmptyCart
	}
	return c, nil
}

// runSideEffects performs the post-payment tasks. None of them can fail the
// purchase; failures are collected and returned.
func (s *Service) runSideEffects(
	ctx context.Context,
	userID int64,
	c *cart.Cart,
	o *order.Order,
	delivery string,
) []TaskFailure {
	ctx, span := s.tracer.Start(ctx, "checkout.side_effects")
	defer span.End()

	var (
		mu       sync.Mutex
		failures []TaskFailure
	)
	record := func(f TaskFailure) {
		mu.Lock()
		failures = append(failures, f)
		mu.Unlock()
	}

	if err := s.deps.Carts.Clear(ctx, c.ID); err != nil {
		record(TaskFailure{Task: TaskClearCart, Err: err})
	}

	bookIDs := make([]int64, len(c.Items))
	for i, it := range c.Items {
		bookIDs[i] = it.BookID
	}
	if err := s.deps.Bus.Publish(ctx, notify.InventoryUpdated{BookIDs: bookIDs}); err != nil {
		record(TaskFailure{Task: TaskPublishInventory, Err: err})
	}

	var g errgroup.Group
	g.SetLimit(s.parallelism)
	for _, it := range c.Items {
		g.Go(func() error {
			b, err := s.deps.Books.GetByID(ctx, it.BookID)
			if err != nil {
				record(TaskFailure{Task: TaskFetchBook, BookID: it.BookID, Err: err})
				return nil
			}
			if err := s.deps.Bus.Publish(ctx, notify.ClientInventoryDecrement{
				Book:         *b,
				QuantitySold: it.Quantity,
			}); err != nil {
				record(TaskFailure{Task: TaskPublishDecrement, BookID: it.BookID, Err: err})
			}
			return nil
		})
	}
	_ = g.Wait()

	snap := kv.AddressSnapshot{
		OrderID:         o.ID,
		DeliveryAddress: delivery,
		Timestamp:       s.now(),
	}
	if err := kv.SaveSnapshot(ctx, s.deps.Session, kv.SessionOrderAddressKey(userID), snap); err != nil {
		record(TaskFailure{Task: TaskSessionSnapshot, Err: err})
	}
	if err := kv.SaveSnapshot(ctx, s.deps.Durable, kv.DurableOrderAddressKey(o.ID), snap); err != nil {
		record(TaskFailure{Task: TaskDurableSnapshot, Err: err})
	}
	if err := s.deps.Session.Delete(ctx, kv.CheckoutFormKey(userID)); err != nil {
		record(TaskFailure{Task: TaskClearCheckoutForm, Err: err})
	}

	return failures
}
