package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront-orders.git/internal/config"
	"github.com/ariefcatur/go-storefront-orders.git/internal/inventory"
	kafkax "github.com/ariefcatur/go-storefront-orders.git/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders.git/internal/logx"
	"github.com/ariefcatur/go-storefront-orders.git/internal/orders"
	"github.com/ariefcatur/go-storefront-orders.git/internal/postgres"
	"github.com/ariefcatur/go-storefront-orders.git/internal/reconcile"
	"github.com/ariefcatur/go-storefront-orders.git/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := logx.New(cfg.ServiceName + "-reconciler")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	h := &reconcile.Handler{
		Stocks:  &inventory.Ledger{DB: db},
		Redis:   rdb,
		Log:     logger,
		Service: cfg.ServiceName + "-reconciler",
	}

	group := getenv("RECONCILER_GROUP", "order-reconciler")
	workers := mustAtoi(os.Getenv("RECONCILER_WORKERS"), 4)
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicStockMismatch, workers, logger)

	go func() {
		logger.Info("reconciler consumer started",
			zap.String("group", group),
			zap.String("topic", orders.TopicStockMismatch),
			zap.Int("workers", workers))
		if err := cons.Start(ctx, h.HandleMismatch); err != nil {
			logger.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	logger.Info("shutting down consumer...")
	cancel()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil || i <= 0 {
		return def
	}
	return i
}
