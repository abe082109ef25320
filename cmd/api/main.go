package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront-orders.git/internal/cart"
	"github.com/ariefcatur/go-storefront-orders.git/internal/checkout"
	"github.com/ariefcatur/go-storefront-orders.git/internal/config"
	"github.com/ariefcatur/go-storefront-orders.git/internal/customers"
	"github.com/ariefcatur/go-storefront-orders.git/internal/httpx"
	"github.com/ariefcatur/go-storefront-orders.git/internal/inventory"
	kafkax "github.com/ariefcatur/go-storefront-orders.git/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders.git/internal/logx"
	"github.com/ariefcatur/go-storefront-orders.git/internal/orders"
	"github.com/ariefcatur/go-storefront-orders.git/internal/payment"
	"github.com/ariefcatur/go-storefront-orders.git/internal/postgres"
	"github.com/ariefcatur/go-storefront-orders.git/internal/redisx"
	"github.com/ariefcatur/go-storefront-orders.git/internal/voucher"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := logx.New(cfg.ServiceName)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, satu per topic
	pCreated := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024, logger)
	pCreated.Start(ctx)
	pPaid := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPaid, 1024, logger)
	pPaid.Start(ctx)
	pCancelled := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCancelled, 1024, logger)
	pCancelled.Start(ctx)
	pMismatch := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStockMismatch, 256, logger)
	pMismatch.Start(ctx)

	// Repos & services
	orderRepo := &orders.Repo{DB: db}
	ledger := &inventory.Ledger{DB: db}
	custRepo := &customers.Repo{DB: db}
	voucherRepo := &voucher.Repo{DB: db}
	txRepo := &payment.TransactionRepo{DB: db}
	carts := &cart.Store{R: rdb}

	gateway := payment.NewGateway(cfg.GatewayBaseURL, cfg.GatewayServerKey, cfg.GatewayTimeout, logger)

	checkoutSvc := &checkout.Service{
		Carts:        carts,
		Customers:    custRepo,
		Inventory:    ledger,
		Vouchers:     voucherRepo,
		Orders:       orderRepo,
		Transactions: txRepo,
		Gateway:      gateway,
		Producer:     pCreated,
		Log:          logger,
		ServiceName:  cfg.ServiceName,
	}
	machine := &orders.Service{
		Store:       orderRepo,
		Ledger:      ledger,
		Producer:    pCancelled,
		Log:         logger,
		ServiceName: cfg.ServiceName,
	}
	applier := &payment.Applier{
		Orders:           orderRepo,
		Transactions:     txRepo,
		Ledger:           ledger,
		PaidProducer:     pPaid,
		MismatchProducer: pMismatch,
		Log:              logger,
		ServiceName:      cfg.ServiceName,
	}

	// Router: order endpoints butuh session, webhook tidak (server-to-server).
	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{
		Checkout: checkoutSvc,
		Reader:   orderRepo,
		Machine:  machine,
		Redis:    rdb,
		Log:      logger,
	}
	router.Group(func(r chi.Router) {
		r.Use(httpx.RequireSession(rdb))
		oh.Register(r)
	})
	wh := &httpx.WebhookHandler{
		Applier:   applier,
		Dedup:     &redisx.Dedup{R: rdb, TTL: redisx.TTLWebhookDedup},
		ServerKey: cfg.GatewayServerKey,
		Log:       logger,
	}
	wh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	for _, p := range []*kafkax.Producer{pCreated, pPaid, pCancelled, pMismatch} {
		p.Close() // tutup inbox -> flush & close writer
	}
	cancel() // stop producer loops
	for _, p := range []*kafkax.Producer{pCreated, pPaid, pCancelled, pMismatch} {
		p.WaitClosed()
	}
}
