package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-printshop/internal/catalog"
	"github.com/ariefcatur/go-printshop/internal/config"
	kafkax "github.com/ariefcatur/go-printshop/internal/kafka"
	"github.com/ariefcatur/go-printshop/internal/logging"
	"github.com/ariefcatur/go-printshop/internal/orders"
	"github.com/ariefcatur/go-printshop/internal/postgres"
	"github.com/ariefcatur/go-printshop/internal/production"
	"github.com/ariefcatur/go-printshop/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("service", cfg.ServiceName+"-production"))

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

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &production.Service{
		Queue:       &catalog.Repo{DB: db},
		Cache:       redisx.Store{R: rdb},
		ServiceName: cfg.ServiceName + "-production",
		Logger:      logger,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ProductionGroup, orders.TopicOrderPlaced, cfg.ProductionWorkers, logger)
	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("production consumer started",
			zap.String("group", cfg.ProductionGroup),
			zap.String("topic", orders.TopicOrderPlaced),
			zap.Int("workers", cfg.ProductionWorkers))
		if err := cons.Start(ctx, svc.HandleOrderPlaced); err != nil {
			logger.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	logger.Info("shutting down consumer")
	cancel()
	<-done
}
