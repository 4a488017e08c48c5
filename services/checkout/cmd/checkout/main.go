package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	pkgdb "github.com/Skotchmaster/storefront/pkg/db"
	"github.com/Skotchmaster/storefront/pkg/events"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/metrics"
	"github.com/Skotchmaster/storefront/pkg/middleware/identity"
	loggingmw "github.com/Skotchmaster/storefront/pkg/middleware/logging"

	"github.com/Skotchmaster/storefront/services/checkout/internal/cache"
	checkoutcfg "github.com/Skotchmaster/storefront/services/checkout/internal/config"
	"github.com/Skotchmaster/storefront/services/checkout/internal/httpserver"
	"github.com/Skotchmaster/storefront/services/checkout/internal/payment"
	"github.com/Skotchmaster/storefront/services/checkout/internal/repo"
	"github.com/Skotchmaster/storefront/services/checkout/internal/service"
	"github.com/Skotchmaster/storefront/services/checkout/internal/tax"
)

func main() {
	cfg := checkoutcfg.Load()

	logger := logging.New(cfg.LogLevel, cfg.ServiceName)
	slog.SetDefault(logger)

	if cfg.RunMigrations {
		if err := pkgdb.Migrate(cfg.DatabaseURL, repo.Migrations, repo.MigrationsDir, "checkout_schema_migrations"); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := pkgdb.Open(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db open: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	serverMetrics := metrics.NewServerMetrics(reg, cfg.ServiceName)
	checkoutMetrics := metrics.NewCheckoutMetrics(reg, cfg.ServiceName)

	var publisher events.Publisher = events.Nop{}
	var producer *events.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer, err = events.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			log.Fatalf("kafka producer: %v", err)
		}
		publisher = producer
	} else {
		logger.Warn("kafka_disabled", "reason", "KAFKA_BROKERS is empty")
	}

	var rdb *redis.Client
	var couponCache cache.CouponCache
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		couponCache = cache.NewRedisCache(rdb, cfg.CouponCacheTTL)
	}

	gormRepo := &repo.GormRepo{DB: db}
	taxAdapter := &tax.Adapter{
		Service: tax.NewClient(cfg.TaxServiceURL, cfg.TaxAPIKey, cfg.TaxTimeout, logger),
		Metrics: checkoutMetrics,
	}
	ident := identity.New(cfg.JWTAccessSecret)

	cartHandler := &httpserver.CartHTTP{
		Svc: &service.CartService{
			Repo:    gormRepo,
			Tax:     taxAdapter,
			Coupons: &service.CouponLookup{Repo: gormRepo, Cache: couponCache},
		},
		Merge: &service.MergeService{
			Repo:    gormRepo,
			Tax:     taxAdapter,
			Events:  publisher,
			Metrics: checkoutMetrics,
		},
		Identity: ident,
	}
	checkoutHandler := &httpserver.CheckoutHTTP{
		Svc: &service.CheckoutService{
			Repo:    gormRepo,
			Gateway: payment.NewClient(cfg.PaymentGatewayURL, cfg.PaymentAPIKey, cfg.PaymentTimeout, logger),
			Events:  publisher,
			Metrics: checkoutMetrics,
		},
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(loggingmw.RequestLogger(logger, serverMetrics))

	httpserver.Register(e, &httpserver.Deps{
		CartHandler:     cartHandler,
		CheckoutHandler: checkoutHandler,
		Identity:        ident,
		Metrics:         metrics.Handler(reg),
		Ready: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			if err := sqlDB.PingContext(ctx); err != nil {
				return err
			}
			if rdb != nil {
				return rdb.Ping(ctx).Err()
			}
			return nil
		},
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
	}

	go func() {
		logger.Info("server_started", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_failed", "error", err)
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("kafka_close_failed", "error", err)
		}
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if err := pkgdb.Close(db); err != nil {
		logger.Error("db_close_failed", "error", err)
	}

	logger.Info("server_stopped")
}
