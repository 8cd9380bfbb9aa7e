package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/DoHyunDaniel/reservation-api-project/internal/config"
	"github.com/DoHyunDaniel/reservation-api-project/internal/database"
	"github.com/DoHyunDaniel/reservation-api-project/internal/handler"
	"github.com/DoHyunDaniel/reservation-api-project/internal/logging"
	"github.com/DoHyunDaniel/reservation-api-project/internal/metrics"
	"github.com/DoHyunDaniel/reservation-api-project/internal/middleware"
	"github.com/DoHyunDaniel/reservation-api-project/internal/model"
	"github.com/DoHyunDaniel/reservation-api-project/internal/queue"
	"github.com/DoHyunDaniel/reservation-api-project/internal/repository"
	"github.com/DoHyunDaniel/reservation-api-project/internal/repository/memstore"
	"github.com/DoHyunDaniel/reservation-api-project/internal/reservation"
	"github.com/DoHyunDaniel/reservation-api-project/internal/router"
	"github.com/DoHyunDaniel/reservation-api-project/internal/service"
)

const serviceName = "reservation-api"

func main() {
	_ = godotenv.Load() // a missing .env is fine

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logger := logging.Setup(os.Stdout, serviceName, cfg.Env, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// backends are the storage implementations selected by STORAGE_DRIVER.
type backends struct {
	reservations reservation.ReservationStore
	stores       interface {
		reservation.StoreDirectory
		handler.StoreCatalog
	}
	users interface {
		reservation.UserDirectory
		handler.UserAccounts
	}
	reviews handler.ReviewBook
	tokens  handler.RefreshTokens
	db     handler.Pinger
	close  func() error
}

func openBackends(ctx context.Context, cfg config.Config, logger *slog.Logger) (backends, error) {
	if cfg.StorageDriver == config.DriverMemory {
		logger.Warn("using in-memory storage; data is lost on restart")
		stores := memstore.NewStores()
		return backends{
			reservations: memstore.NewReservations(stores),
			stores:       stores,
			users:        memstore.NewUsers(),
			reviews:      stores,
			tokens:       memstore.NewTokens(),
			close:        func() error { return nil },
		}, nil
	}

	db, err := database.Open(ctx, database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		return backends{}, fmt.Errorf("open database: %w", err)
	}
	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return backends{}, err
		}
		logger.Info("database schema applied")
	}
	return backends{
		reservations: repository.NewReservationRepo(db),
		stores:       repository.NewStoreRepo(db),
		users:        repository.NewUserRepo(db.DB),
		reviews:      repository.NewReviewRepo(db),
		tokens:       repository.NewTokenRepo(db.DB),
		db:           db,
		close:        db.Close,
	}, nil
}

// seedAdmin creates the ADMIN account named by ADMIN_EMAIL unless it
// already exists. It reports whether an account was created.
func seedAdmin(ctx context.Context, users handler.UserAccounts, email, password string, cost int) (bool, error) {
	u, err := users.GetByEmail(ctx, email)
	switch {
	case err == nil && u.Role == model.RoleAdmin:
		return false, nil
	case err == nil:
		return false, fmt.Errorf("seed admin: %s is a %s account", email, u.Role)
	case !errors.Is(err, repository.ErrNotFound):
		return false, fmt.Errorf("seed admin: %w", err)
	}
	if _, err := users.Create(ctx, email, password, model.RoleAdmin, cost); err != nil {
		return false, fmt.Errorf("seed admin: %w", err)
	}
	return true, nil
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.close() }()

	if cfg.AdminEmail != "" {
		created, err := seedAdmin(ctx, store.users, cfg.AdminEmail, cfg.AdminPassword, cfg.BcryptCost)
		if err != nil {
			return err
		}
		if created {
			logger.Info("admin account seeded", slog.String("email", cfg.AdminEmail))
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []reservation.Option{
		reservation.WithCheckInWindow(cfg.CheckInWindow),
		reservation.WithMetrics(metrics.NewReservations(reg)),
		reservation.WithLogger(logger),
	}
	if cfg.RabbitURL != "" {
		pub := service.NewQueuePublisher(cfg.RabbitURL)
		defer func() { _ = pub.Close() }()
		opts = append(opts, reservation.WithPublisher(pub))
	} else {
		logger.Info("RABBITMQ_URL not set; reservation events are not published")
	}
	engine := reservation.NewService(store.reservations, store.stores, store.users, opts...)

	if cfg.AuditConsumerEnabled {
		sink := logging.RotatingFile(cfg.AuditLogPath)
		defer func() { _ = sink.Close() }()
		go func() {
			if err := queue.StartAuditConsumer(ctx, cfg.RabbitURL, sink); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("audit consumer stopped", slog.Any("error", err))
			}
		}()
	}

	rdb := config.NewRedisClient(ctx, cfg.Redis)
	if rdb == nil {
		logger.Warn("redis unavailable; response cache off, rate limits are per instance", slog.String("addr", cfg.Redis.Addr))
	} else {
		defer func() { _ = rdb.Close() }()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())

	var httpMetrics *middleware.HTTPMetrics
	if cfg.MetricsEnabled {
		httpMetrics = middleware.NewHTTPMetrics(reg)
		e.Use(httpMetrics.Middleware())
	}

	routes := router.Options{
		JWTSecret: cfg.JWTSecret,
		RateLimit: middleware.NewTokenBucket(cfg.RateLimit, rdb),
		Cache:     middleware.NewRedisCache(cfg.Cache, rdb),
	}
	reservations := handler.NewReservationHandler(engine)
	stores := handler.NewStoreHandler(store.stores, store.users)
	reviews := handler.NewReviewHandler(store.reviews, store.reservations, store.stores)
	auth := handler.NewAuthHandler(handler.AuthSettings{
		JWTSecret:      cfg.JWTSecret,
		AccessTTLMin:   cfg.AccessTTLMin,
		RefreshTTLDays: cfg.RefreshTTLDays,
		BcryptCost:     cfg.BcryptCost,
	}, store.users, store.tokens)

	router.RegisterRoutes(e, handler.Health(store.db), httpMetrics)
	router.RegisterAuth(e, auth, routes)
	router.RegisterPublic(e, stores, reviews, routes)
	router.RegisterCustomer(e, reservations, reviews, routes)
	router.RegisterOwner(e, reservations, stores, routes)
	router.RegisterAdmin(e, reservations, routes)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info("listening", slog.String("addr", addr), slog.String("storage", cfg.StorageDriver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
