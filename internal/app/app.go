package app

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/cache"
	"github.com/xenking/storefront/internal/dispatch"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/promo"
	"github.com/xenking/storefront/internal/domain/sale"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/imagestore"
	"github.com/xenking/storefront/internal/notify"
	"github.com/xenking/storefront/internal/repository"
	"github.com/xenking/storefront/internal/session"
	"github.com/xenking/storefront/pkg/health"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

const serviceName = "storefront-api"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Redis for sessions and the promo cache.
	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return errors.Wrap(err, "parse redis url")
	}
	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()

	// Kafka producer for order notifications.
	propagator := propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
	producer := notify.NewProducer(notify.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic), propagator)
	defer func() {
		if err := producer.Close(); err != nil {
			lg.Warn("Close kafka writer", zap.Error(err))
		}
	}()

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool.Ping))
	healthSvc.AddReadinessCheck("redis", 2*time.Second, health.PingCheck(func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}))
	healthSvc.AddReadiness(health.Check{
		Name:             "kafka",
		Timeout:          5 * time.Second,
		FailureThreshold: 5,
		Func: health.DialCheck(func(ctx context.Context) (io.Closer, error) {
			return kafka.DialContext(ctx, "tcp", cfg.Kafka.Brokers[0])
		}),
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc", time.Second, health.GCMaxPauseCheck(time.Second))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	taxRate, err := cfg.Order.TaxRate()
	if err != nil {
		return err
	}

	// Repositories.
	productRepo := repository.NewProductRepository(pool)
	promoRepo := cache.NewPromos(repository.NewPromoRepository(pool), rdb, cfg.Promo.CacheTTL)
	cartRepo := repository.NewCartRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	saleRepo := repository.NewSaleRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	businessRepo := repository.NewBusinessRepository(pool)

	// Side effects run outside the request on a bounded pool.
	tasks := dispatch.New(lg.Named("dispatch"), cfg.Dispatcher)

	// Domain services.
	evaluator := promo.NewEvaluator(promo.Config{Precision: cfg.Promo.Precision}, promoRepo, productRepo, orderRepo)
	promoService := promo.NewService(promoRepo, imagestore.New(cfg.ImagesDir))
	cartService := cart.NewService(cartRepo, productRepo)
	saleService := sale.NewService(saleRepo, businessRepo, taxRate)
	orderService, err := order.NewService(order.Deps{
		Products:  productRepo,
		Orders:    orderRepo,
		Evaluator: evaluator,
		Usage:     promoRepo,
		Profiles:  userRepo,
		Carts:     cartService,
		Notifier:  producer,
		Sales:     saleService,
		Tasks:     tasks,
		Tracer:    m.TracerProvider().Tracer(serviceName),
		Meter:     m.MeterProvider().Meter(serviceName),
	})
	if err != nil {
		return errors.Wrap(err, "create order service")
	}

	// HTTP handlers.
	apiLimiter := httpmiddleware.NewLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window)
	validateLimiter := httpmiddleware.NewLimiter(cfg.RateLimit.Validate.Max, cfg.RateLimit.Validate.Window)
	go apiLimiter.Run(ctx)
	go validateLimiter.Run(ctx)

	h := handler.New(handler.Config{
		AdminKeyHash:    cfg.Admin.KeyHash,
		AdminPepper:     cfg.Admin.Pepper,
		ValidateLimiter: validateLimiter,
	}, handler.Deps{
		Promos:    promoService,
		Evaluator: evaluator,
		Products:  productRepo,
		Carts:     cartService,
		Orders:    orderService,
		Sales:     saleService,
		Business:  businessRepo,
		Sessions:  session.NewStore(rdb),
	})

	// Router: health endpoints + API routes on one server.
	router := chi.NewRouter()
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)
	h.Register(router)
	routeFinder := httpmiddleware.MakeRouteFinder(router)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", handler.AdminKeyHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(apiLimiter, nil),
			httpmiddleware.Instrument(serviceName, routeFinder, m.TracerProvider(), m.MeterProvider()),
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
		// Queued confirmations and sales still need the pool and the writer.
		if err := tasks.Close(shutdownCtx); err != nil {
			lg.Error("Dispatcher drain error", zap.Error(err))
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
