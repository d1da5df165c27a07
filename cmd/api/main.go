package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-printshop/internal/catalog"
	"github.com/ariefcatur/go-printshop/internal/config"
	"github.com/ariefcatur/go-printshop/internal/estimate"
	"github.com/ariefcatur/go-printshop/internal/eta"
	"github.com/ariefcatur/go-printshop/internal/httpx"
	kafkax "github.com/ariefcatur/go-printshop/internal/kafka"
	"github.com/ariefcatur/go-printshop/internal/logging"
	"github.com/ariefcatur/go-printshop/internal/orders"
	"github.com/ariefcatur/go-printshop/internal/postgres"
	"github.com/ariefcatur/go-printshop/internal/production"
	"github.com/ariefcatur/go-printshop/internal/redisx"
	"github.com/ariefcatur/go-printshop/internal/tasks"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("service", cfg.ServiceName))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, postgres.PoolConfig{
		DSN:      cfg.PostgresDSN,
		MaxConns: cfg.PostgresMaxConns,
		MinConns: cfg.PostgresMinConns,
	})
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db, logger); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		// cache only; the API keeps working without it
		logger.Warn("redis unreachable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	cache := redisx.Store{R: rdb}

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, logger)
	prod.Start(ctx)

	runner := tasks.NewRunner(cfg.TaskWorkers, 256, 10*time.Second, logger)

	catalogRepo := &catalog.Repo{DB: db}
	orderRepo := &orders.Repo{DB: db, Logger: logger}
	estimator := estimate.New(catalogRepo,
		estimate.WithLogger(logger),
		estimate.WithOwnPrintTime(cfg.EstimateOwnPrintTime))
	policy := eta.Policy{
		FastRegion:  cfg.ShippingFastRegion,
		FastDays:    cfg.ShippingFastDays,
		DefaultDays: cfg.ShippingDefaultDays,
	}
	lifecycle := &orders.Lifecycle{Store: orderRepo, Publisher: prod, Service: cfg.ServiceName, Logger: logger}
	queue := &production.Service{Queue: catalogRepo, Cache: cache, Publisher: prod, ServiceName: cfg.ServiceName, Logger: logger}

	router := httpx.NewRouter(logger,
		[]httpx.Registrar{
			&httpx.EstimatesHandler{Estimator: estimator, Policy: policy},
			&httpx.CheckoutHandler{
				Catalog:   catalogRepo,
				Estimator: estimator,
				Orders:    orderRepo,
				Cache:     cache,
				Publisher: prod,
				Tasks:     runner,
				Policy:    policy,
				Service:   cfg.ServiceName,
			},
			&httpx.OrdersHandler{Orders: orderRepo, Lifecycle: lifecycle, Cache: cache, TrackingTemplate: cfg.TrackingURLTemplate},
			&httpx.QueueHandler{Catalog: catalogRepo, Queue: queue},
		},
		&httpx.CountdownHandler{Orders: orderRepo},
	)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	runner.Close()    // drain pending notifications before the producer closes
	prod.Close()      // tutup inbox -> flush & close writer
	prod.WaitClosed() // drain
	cancel()
}
