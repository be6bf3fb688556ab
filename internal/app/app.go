package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/booklify-checkout/internal/backend"
	"github.com/xenking/booklify-checkout/internal/domain/auth"
	"github.com/xenking/booklify-checkout/internal/domain/checkout"
	"github.com/xenking/booklify-checkout/internal/domain/invoice"
	"github.com/xenking/booklify-checkout/internal/handler"
	"github.com/xenking/booklify-checkout/internal/kv"
	"github.com/xenking/booklify-checkout/internal/notify"
	"github.com/xenking/booklify-checkout/internal/storage/postgres"
	"github.com/xenking/booklify-checkout/internal/storage/redis"
	"github.com/xenking/booklify-checkout/pkg/health"
	"github.com/xenking/booklify-checkout/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("backend", cfg.Backend.BaseURL),
		zap.Bool("stable_invoice_numbers", cfg.Invoice.StableNumbers),
	)

	// Durable store: PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	durable := postgres.NewKVStore(pool)

	// Session store.
	session := redis.New(redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		TTL:      cfg.Redis.SessionTTL,
	})
	defer func() {
		if err := session.Close(); err != nil {
			lg.Warn("Close redis", zap.Error(err))
		}
	}()

	// Bookstore backend.
	client, err := backend.New(cfg.Backend.BaseURL, backend.Options{
		Timeout:        cfg.Backend.Timeout,
		TracerProvider: m.TracerProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create backend client")
	}

	tokens, err := auth.NewTokenManager(cfg.Auth.TokenSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		return errors.Wrap(err, "create token manager")
	}

	var registry invoice.Registry
	if cfg.Invoice.StableNumbers {
		registry = postgres.NewInvoiceRegistry(pool)
	}
	svc, err := newServices(cfg, client, session, durable, registry, m)
	if err != nil {
		return err
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck("postgres", pool))
	healthSvc.AddReadinessCheck("redis", 2*time.Second, health.PingCheck("redis", session))
	healthSvc.AddReadinessCheck("backend", 5*time.Second, health.PingCheck("backend", client))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc_pause", time.Second, health.GCPauseCheck(time.Second))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	mux := newMux(healthSvc, svc, tokens)
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// A payment submission chains several backend calls.
		WriteTimeout:   60 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				Origins:          cfg.CORS.Origins,
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				RPS:   cfg.RateLimit.RPS,
				Burst: cfg.RateLimit.Burst,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("booklify-checkout", routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// services is the domain layer.
type services struct {
	checkout *checkout.Service
	invoices *invoice.Service
}

// newServices builds the checkout and invoice services on top of the stores
// and the backend client. registry may be nil.
func newServices(
	cfg *Config,
	client *backend.Client,
	session, durable kv.Store,
	registry invoice.Registry,
	t httpmiddleware.Telemetry,
) (*services, error) {
	bus := notify.NewBus()
	for _, kind := range []notify.Kind{notify.KindInventoryUpdated, notify.KindClientInventoryDecrement} {
		bus.Subscribe(kind, logEvent)
	}

	checkoutSvc := checkout.NewService(checkout.Deps{
		Addresses: client.Addresses(),
		Carts:     client.Carts(),
		Orders:    client.Orders(),
		Payments:  client.Payments(),
		Books:     client.Books(),
		Bus:       bus,
		Session:   session,
		Durable:   durable,
	},
		checkout.WithBookFetchParallelism(cfg.Notify.BookFetchParallelism),
		checkout.WithTracerProvider(t.TracerProvider()),
		checkout.WithMeterProvider(t.MeterProvider()),
	)

	taxRate, err := cfg.Invoice.Rate()
	if err != nil {
		return nil, err
	}
	builderOpts := []invoice.BuilderOption{invoice.WithTracer(t.TracerProvider())}
	if registry != nil {
		builderOpts = append(builderOpts, invoice.WithRegistry(registry))
	}
	builder := invoice.NewBuilder(invoice.Config{
		TaxRate:  taxRate,
		Currency: cfg.Invoice.Currency,
		DueDays:  cfg.Invoice.DueDays,
	}, invoice.Sources{
		Session:   session,
		Durable:   durable,
		Addresses: client.Addresses(),
	}, builderOpts...)

	return &services{
		checkout: checkoutSvc,
		invoices: invoice.NewService(client.Orders(), client.Addresses(), builder),
	}, nil
}

// newMux mounts the probes and the authenticated API routes.
func newMux(h *health.Health, svc *services, tokens handler.TokenVerifier) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", h.LiveEndpoint)
	mux.HandleFunc("GET /readyz", h.ReadyEndpoint)
	handler.NewHandler(svc.checkout, svc.invoices).Register(mux, handler.Authenticate(tokens))
	return mux
}

// logEvent is the in-process subscriber for inventory notifications.
func logEvent(ctx context.Context, ev notify.Event) error {
	lg := zctx.From(ctx)
	switch e := ev.(type) {
	case notify.InventoryUpdated:
		lg.Info("Inventory updated", zap.Int64s("book_ids", e.BookIDs))
	case notify.ClientInventoryDecrement:
		lg.Info("Inventory decremented",
			zap.Int64("book_id", e.Book.ID),
			zap.Int("quantity_sold", e.QuantitySold),
			zap.Int("quantity_left", e.Book.Quantity),
		)
	}
	return nil
}
