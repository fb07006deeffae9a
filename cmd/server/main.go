package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"jointvibe/internal/app"
	"jointvibe/internal/backend"
	"jointvibe/internal/config"
	"jointvibe/internal/handler"
	"jointvibe/internal/logger"
	"jointvibe/internal/notify"
	"jointvibe/internal/realtime"
	internalRedis "jointvibe/internal/redis"
	"jointvibe/internal/repository/gateway"
	"jointvibe/internal/service"
)

const (
	backendPostgres = "postgres"
	backendMemory   = "memory"

	realtimeRedis    = "redis"
	realtimeRabbitMQ = "rabbitmq"
	realtimeMemory   = "memory"
)

func main() {
	// Load configuration.
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.App)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped with error", zap.Error(err))
	}
	log.Info("server exited")
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		var err error
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Warn("failed to initialize New Relic", zap.Error(err))
		} else {
			log.Info("New Relic enabled", zap.String("app", cfg.NewRelic.AppName))
			defer nrApp.Shutdown(5 * time.Second)
		}
	}

	// Redis backs locations, locks, caches, sessions and idempotency keys.
	redisClient, err := app.NewRedisClient(startCtx, cfg.Redis, nrApp)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()
	log.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))

	hub, err := newHub(cfg.Realtime, redisClient, log.Named("realtime"))
	if err != nil {
		return err
	}
	defer hub.Close()

	registry := backend.NewRegistry()
	service.RegisterWalletFunctions(registry, cfg.Wallet.TokenRate)

	b, closeBackend, err := newBackend(startCtx, cfg, hub, registry, nrApp, log)
	if err != nil {
		return err
	}
	defer closeBackend()

	server := wireServer(b, redisClient, nrApp, cfg, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// newHub builds the realtime hub selected by configuration.
func newHub(cfg config.RealtimeConfig, redisClient *redis.Client, log *zap.Logger) (realtime.Hub, error) {
	switch cfg.Driver {
	case realtimeRedis:
		return realtime.NewRedisHub(redisClient, log), nil
	case realtimeRabbitMQ:
		hub, err := realtime.NewRabbitMQHub(cfg.RabbitMQURL, log)
		if err != nil {
			return nil, fmt.Errorf("connect to rabbitmq: %w", err)
		}
		return hub, nil
	case realtimeMemory:
		return realtime.NewMemoryHub(log), nil
	default:
		return nil, fmt.Errorf("unknown realtime driver %q", cfg.Driver)
	}
}

// newBackend builds the backend gateway selected by configuration and returns
// a function releasing its resources.
func newBackend(
	ctx context.Context,
	cfg *config.Config,
	hub realtime.Hub,
	registry *backend.Registry,
	nrApp *newrelic.Application,
	log *zap.Logger,
) (backend.Backend, func(), error) {
	switch cfg.Backend.Driver {
	case backendPostgres:
		// Initialize database with New Relic instrumentation.
		db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		log.Info("connected to postgres", zap.String("db", cfg.Database.DBName))

		if cfg.Backend.AutoMigrate {
			if err := app.RunMigrations(db, log.Named("migrate")); err != nil {
				db.Close()
				return nil, nil, err
			}
		}
		return backend.NewPostgres(db, hub, registry, log.Named("backend")), func() { db.Close() }, nil
	case backendMemory:
		log.Warn("using in-memory backend, data is lost on exit")
		return backend.NewMemory(hub, registry), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend driver %q", cfg.Backend.Driver)
	}
}

// senders returns the notification senders enabled by configuration.
func senders(cfg config.TelegramConfig, log *zap.Logger) []service.Sender {
	out := []service.Sender{service.NewLogSender(log.Named("notify"))}
	if !cfg.Enabled() {
		return out
	}
	tg, err := notify.NewTelegramSender(cfg.Token, cfg.ChatID)
	if err != nil {
		log.Warn("telegram notifications disabled", zap.Error(err))
		return out
	}
	return append(out, tg)
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(b backend.Backend, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config, log *zap.Logger) *http.Server {
	// Initialize Redis stores.
	locationStore := internalRedis.NewLocationStore(redisClient, cfg.Backend.LocationLimit, cfg.Backend.LocationStale)
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)
	sessionStore := internalRedis.NewSessionStore(redisClient, cfg.Backend.SessionTTL)

	// Initialize repositories.
	orderRepo := gateway.NewOrderRepository(b)
	deliveryRepo := gateway.NewDeliveryRepository(b)
	venueRepo := gateway.NewVenueRepository(b)
	menuRepo := gateway.NewMenuRepository(b)
	driverRepo := gateway.NewDriverRepository(b)
	walletRepo := gateway.NewWalletRepository(b)

	// Initialize services.
	fares := service.NewFareCalculator(cfg.Pricing.RateTable())
	notificationService := service.NewNotificationService(log.Named("notify"), senders(cfg.Telegram, log)...)
	menuService := service.NewMenuService(menuRepo, venueRepo, cacheStore, log.Named("menu"))
	venueService := service.NewVenueService(b, venueRepo, sessionStore, notificationService, log.Named("venue"))
	driverService := service.NewDriverService(locationStore, cacheStore, driverRepo, log.Named("driver"))
	orderService := service.NewOrderService(b, orderRepo, venueRepo, menuService,
		driverService, fares, notificationService,
		service.OrderConfig{
			TaxRate:              cfg.Orders.TaxRate,
			DriverSearchRadiusKm: cfg.Orders.DriverSearchRadiusKm,
		}, log.Named("order"))
	deliveryService := service.NewDeliveryService(b, deliveryRepo, orderRepo, driverRepo, driverService, lockStore,
		notificationService, log.Named("delivery"))
	walletService := service.NewWalletService(b, walletRepo, notificationService, log.Named("wallet"))

	orderHandler := handler.NewOrderHandler(orderService, log.Named("order"))

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		FareHandler:     handler.NewFareHandler(fares),
		VenueHandler:    handler.NewVenueHandler(venueService, menuService, orderService),
		OrderHandler:    orderHandler,
		DriverHandler:   handler.NewDriverHandler(driverService, deliveryService),
		DeliveryHandler: handler.NewDeliveryHandler(deliveryService),
		WalletHandler:   handler.NewWalletHandler(walletService),
		AdminHandler:    handler.NewAdminHandler(venueService, walletService),
		RedisClient:     redisClient,
		NewRelicApp:     nrApp,
		Logger:          log,
	})

	// Create HTTP server.
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	// Event streams never go idle on their own; end them so Shutdown only
	// waits for regular requests.
	server.RegisterOnShutdown(orderHandler.CloseStreams)
	return server
}
