package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/booklify-checkout/internal/backend"
	"github.com/xenking/booklify-checkout/internal/domain/auth"
	"github.com/xenking/booklify-checkout/internal/kv"
	"github.com/xenking/booklify-checkout/pkg/health"
)

type noopTelemetry struct{}

func (noopTelemetry) TracerProvider() trace.TracerProvider { return tracenoop.NewTracerProvider() }
func (noopTelemetry) MeterProvider() metric.MeterProvider  { return metricnoop.NewMeterProvider() }

type fakeBook struct {
	BookID        int64   `json:"bookID"`
	Title         string  `json:"title"`
	Author        string  `json:"author"`
	ISBN          string  `json:"isbn"`
	BookCondition string  `json:"bookCondition"`
	Price         float64 `json:"price"`
	Quantity      int     `json:"quantity"`
}

type fakeCartItem struct {
	Book     fakeBook `json:"book"`
	Quantity int      `json:"quantity"`
}

type fakeOrderItem struct {
	OrderItemID int64    `json:"orderItemId"`
	Quantity    int      `json:"quantity"`
	Price       float64  `json:"price"`
	OrderStatus string   `json:"orderStatus"`
	Book        fakeBook `json:"book"`
}

type fakeOrder struct {
	OrderID           int64  `json:"orderId"`
	RegularUserID     int64  `json:"regularUserId"`
	ShippingAddressID int64  `json:"shippingAddressId"`
	DeliveryAddress   string `json:"deliveryAddress"`
	OrderStatus       string `json:"orderStatus"`
	OrderDate         string `json:"orderDate"`
}

// bookstore is an in-memory stand-in for the bookstore REST backend.
type bookstore struct {
	t     *testing.T
	token string

	mu        sync.Mutex
	books     map[int64]fakeBook
	cart      []fakeCartItem
	addresses []map[string]any
	orders    []fakeOrder
	items     map[int64][]fakeOrderItem
	payments  int
}

func newBookstore(t *testing.T, token string) *bookstore {
	books := map[int64]fakeBook{
		1: {BookID: 1, Title: "Long Walk to Freedom", Author: "Nelson Mandela", ISBN: "9780316548182", BookCondition: "Good", Price: 115, Quantity: 4},
		2: {BookID: 2, Title: "Disgrace", Author: "J. M. Coetzee", ISBN: "9780099289524", BookCondition: "Fair", Price: 57.5, Quantity: 1},
	}
	return &bookstore{
		t:     t,
		token: token,
		books: books,
		cart: []fakeCartItem{
			{Book: books[1], Quantity: 2},
			{Book: books[2], Quantity: 1},
		},
		items: make(map[int64][]fakeOrderItem),
	}
}

func (b *bookstore) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/addresses/user/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if len(b.addresses) == 0 {
			http.NotFound(w, r)
			return
		}
		b.reply(w, b.addresses[len(b.addresses)-1])
	})
	mux.HandleFunc("POST /api/addresses/create", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]any
		b.decode(r, &in)
		b.mu.Lock()
		defer b.mu.Unlock()
		in["id"] = len(b.addresses) + 1
		b.addresses = append(b.addresses, in)
		b.reply(w, in)
	})
	mux.HandleFunc("PUT /api/addresses/update", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]any
		b.decode(r, &in)
		b.mu.Lock()
		defer b.mu.Unlock()
		b.addresses[len(b.addresses)-1] = in
		b.reply(w, in)
	})
	mux.HandleFunc("GET /api/cart/user/{id}", func(w http.ResponseWriter, _ *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.reply(w, map[string]any{"cartId": 30, "cartItems": b.cart})
	})
	mux.HandleFunc("DELETE /api/cart/clear/{id}", func(w http.ResponseWriter, _ *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.cart = nil
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /api/orders/create", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			RegularUserID     int64  `json:"regularUserId"`
			ShippingAddressID int64  `json:"shippingAddressId"`
			DeliveryAddress   string `json:"deliveryAddress"`
			OrderItems        []struct {
				BookID   int64 `json:"bookId"`
				Quantity int   `json:"quantity"`
			} `json:"orderItems"`
		}
		b.decode(r, &in)
		b.mu.Lock()
		defer b.mu.Unlock()
		o := fakeOrder{
			OrderID:           int64(len(b.orders) + 1),
			RegularUserID:     in.RegularUserID,
			ShippingAddressID: in.ShippingAddressID,
			DeliveryAddress:   in.DeliveryAddress,
			OrderStatus:       "PENDING",
			OrderDate:         "2026-03-14T09:30:00",
		}
		for i, it := range in.OrderItems {
			bk := b.books[it.BookID]
			b.items[o.OrderID] = append(b.items[o.OrderID], fakeOrderItem{
				OrderItemID: int64(i + 1),
				Quantity:    it.Quantity,
				Price:       bk.Price,
				OrderStatus: "PENDING",
				Book:        bk,
			})
		}
		b.orders = append(b.orders, o)
		b.reply(w, o)
	})
	mux.HandleFunc("GET /api/orders/getByUserId/{id}", func(w http.ResponseWriter, r *http.Request) {
		userID, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		b.mu.Lock()
		defer b.mu.Unlock()
		out := []fakeOrder{}
		for _, o := range b.orders {
			if o.RegularUserID == userID {
				out = append(out, o)
			}
		}
		b.reply(w, out)
	})
	mux.HandleFunc("GET /api/orderItems/getByOrderId/{id}", func(w http.ResponseWriter, r *http.Request) {
		orderID, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		b.mu.Lock()
		defer b.mu.Unlock()
		b.reply(w, b.items[orderID])
	})
	mux.HandleFunc("POST /api/payments/create", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]any
		b.decode(r, &in)
		b.mu.Lock()
		defer b.mu.Unlock()
		b.payments++
		in["paymentId"] = 500 + b.payments
		in["paymentDate"] = "2026-03-14T09:30:01"
		b.reply(w, in)
	})
	mux.HandleFunc("GET /api/book/read/{id}", func(w http.ResponseWriter, r *http.Request) {
		bookID, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		b.mu.Lock()
		defer b.mu.Unlock()
		bk, ok := b.books[bookID]
		if !ok {
			http.NotFound(w, r)
			return
		}
		b.reply(w, bk)
	})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer "+b.token {
			b.t.Errorf("%s %s: authorization %q", r.Method, r.URL.Path, got)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func (b *bookstore) decode(r *http.Request, v any) {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		b.t.Errorf("decode %s: %v", r.URL.Path, err)
	}
}

func (b *bookstore) reply(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		b.t.Errorf("encode: %v", err)
	}
}

type flowEnv struct {
	store   *bookstore
	session *kv.Memory
	durable *kv.Memory
	api     *httptest.Server
	token   string
}

func newFlowEnv(t *testing.T) *flowEnv {
	t.Helper()

	tokens, err := auth.NewTokenManager("flow-secret", "booklify", time.Hour)
	require.NoError(t, err)
	token, err := tokens.Issue(7, "Thandi Mokoena", "thandi@example.com")
	require.NoError(t, err)

	store := newBookstore(t, token)
	upstream := httptest.NewServer(store.handler())
	t.Cleanup(upstream.Close)

	client, err := backend.New(upstream.URL, backend.Options{Timeout: 5 * time.Second})
	require.NoError(t, err)

	cfg := &Config{
		Invoice: InvoiceConfig{TaxRate: "0.15", Currency: "R", DueDays: 30},
		Notify:  NotifyConfig{BookFetchParallelism: 2},
	}
	session, durable := kv.NewMemory(), kv.NewMemory()
	svc, err := newServices(cfg, client, session, durable, nil, noopTelemetry{})
	require.NoError(t, err)

	api := httptest.NewServer(newMux(health.New(), svc, tokens))
	t.Cleanup(api.Close)

	return &flowEnv{store: store, session: session, durable: durable, api: api, token: token}
}

func (e *flowEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequestWithContext(t.Context(), method, e.api.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+e.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

type flowInvoice struct {
	Customer struct {
		ID      int64  `json:"id"`
		Name    string `json:"name"`
		Address string `json:"address"`
	} `json:"customer"`
	Order struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	} `json:"order"`
	Items []struct {
		Description string `json:"description"`
		Quantity    int    `json:"quantity"`
		Total       string `json:"total"`
	} `json:"items"`
	Totals struct {
		Subtotal    string `json:"subtotal"`
		TaxAmount   string `json:"taxAmount"`
		TotalAmount string `json:"totalAmount"`
	} `json:"totals"`
	AddressSource string `json:"addressSource"`
}

func (e *flowEnv) invoice(t *testing.T, orderID int64) flowInvoice {
	t.Helper()
	resp := e.do(t, http.MethodGet, "/api/invoices/"+strconv.FormatInt(orderID, 10), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var inv flowInvoice
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&inv))
	return inv
}

const flowDelivery = "12 Long Street, Gardens, Cape Town, Western Cape, South Africa, 8001"

func TestCheckoutFlow(t *testing.T) {
	e := newFlowEnv(t)

	resp := e.do(t, http.MethodPut, "/api/checkout/form", map[string]string{
		"street":     "12 Long Street",
		"suburb":     "Gardens",
		"city":       "Cape Town",
		"province":   "Western Cape",
		"country":    "South Africa",
		"postalCode": "8001",
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/api/checkout/payments", map[string]string{"paymentMethod": "card"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var submitted struct {
		Payment struct {
			ID            int64  `json:"id"`
			OrderID       int64  `json:"orderId"`
			PaymentMethod string `json:"paymentMethod"`
		} `json:"payment"`
		OrderID         int64             `json:"orderId"`
		DeliveryAddress string            `json:"deliveryAddress"`
		Warnings        []json.RawMessage `json:"warnings"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&submitted))
	assert.Equal(t, int64(1), submitted.OrderID)
	assert.Equal(t, int64(501), submitted.Payment.ID)
	assert.Equal(t, "CARD", submitted.Payment.PaymentMethod)
	assert.Equal(t, flowDelivery, submitted.DeliveryAddress)
	assert.Empty(t, submitted.Warnings)

	t.Run("SideEffects", func(t *testing.T) {
		e.store.mu.Lock()
		defer e.store.mu.Unlock()
		assert.Empty(t, e.store.cart)
		require.Len(t, e.store.addresses, 1)
		assert.Equal(t, true, e.store.addresses[0]["isOrderSpecific"])

		_, err := e.session.Get(t.Context(), kv.CheckoutFormKey(7))
		assert.ErrorIs(t, err, kv.ErrNotFound)

		snap, err := kv.LoadSnapshot(t.Context(), e.durable, kv.DurableOrderAddressKey(1))
		require.NoError(t, err)
		assert.Equal(t, flowDelivery, snap.DeliveryAddress)
	})

	t.Run("InvoiceFromSession", func(t *testing.T) {
		inv := e.invoice(t, 1)
		assert.Equal(t, "session_snapshot", inv.AddressSource)
		assert.Equal(t, flowDelivery, inv.Customer.Address)
		assert.Equal(t, "Thandi Mokoena", inv.Customer.Name)
		assert.Equal(t, int64(7), inv.Customer.ID)
		assert.Equal(t, int64(1), inv.Order.ID)

		require.Len(t, inv.Items, 2)
		assert.Equal(t, "Long Walk to Freedom", inv.Items[0].Description)
		assert.Equal(t, "230.00", inv.Items[0].Total)
		assert.Equal(t, "57.50", inv.Items[1].Total)

		assert.Equal(t, "250.00", inv.Totals.Subtotal)
		assert.Equal(t, "37.50", inv.Totals.TaxAmount)
		assert.Equal(t, "287.50", inv.Totals.TotalAmount)
	})

	t.Run("InvoiceFromDurable", func(t *testing.T) {
		require.NoError(t, e.session.Delete(t.Context(), kv.SessionOrderAddressKey(7)))

		inv := e.invoice(t, 1)
		assert.Equal(t, "durable_snapshot", inv.AddressSource)
		assert.Equal(t, flowDelivery, inv.Customer.Address)
	})

	t.Run("InvoiceHTML", func(t *testing.T) {
		resp := e.do(t, http.MethodGet, "/api/invoices/1/html", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	})

	t.Run("UnknownOrder", func(t *testing.T) {
		resp := e.do(t, http.MethodGet, "/api/invoices/99", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("EmptyCartAfterPurchase", func(t *testing.T) {
		resp := e.do(t, http.MethodPost, "/api/checkout/payments", map[string]any{
			"paymentMethod": "eft",
			"address": map[string]string{
				"street":     "12 Long Street",
				"city":       "Cape Town",
				"province":   "Western Cape",
				"country":    "South Africa",
				"postalCode": "8001",
			},
		})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})
}

func TestCheckoutFlow_MissingForm(t *testing.T) {
	e := newFlowEnv(t)

	resp := e.do(t, http.MethodPost, "/api/checkout/payments", map[string]string{"paymentMethod": "card"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var body struct {
		Fields []string `json:"fields"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body.Fields, "street")

	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	assert.Empty(t, e.store.orders)
	assert.Len(t, e.store.cart, 2)
}

func TestCheckoutFlow_Unauthenticated(t *testing.T) {
	e := newFlowEnv(t)

	resp, err := http.Get(e.api.URL + "/api/invoices/1")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
