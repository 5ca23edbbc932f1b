package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront-service/config"
	"storefront-service/internal/api"
	"storefront-service/internal/backend"
	"storefront-service/internal/broker"
	"storefront-service/internal/cart"
	"storefront-service/internal/checkout"
	"storefront-service/internal/coupon"
	"storefront-service/internal/kvstore"
	"storefront-service/internal/orders"
	"storefront-service/internal/payment"
	"storefront-service/internal/util"
	"storefront-service/internal/worker"
)

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront service")

	tp, err := util.InitTracer("storefront-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	ctx := context.Background()

	var kv kvstore.Store
	redisKV, err := kvstore.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		// Degraded mode: state survives the process but not a restart.
		logger.Warn("Redis unavailable, falling back to in-memory storage", zap.Error(err))
		kv = kvstore.NewMemory()
	} else {
		defer redisKV.Close()
		kv = redisKV
	}

	var publisher *broker.EventPublisher
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		publisher = broker.NewEventPublisher(producer)
		logger.Info("Kafka publisher initialized")
	}

	backendClient := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, kv)
	cartMgr := cart.NewManager(ctx, kv)
	orderStore := orders.NewStore(ctx, kv, backendClient, publisher, cfg.Orders.PageSize)
	simulator := payment.NewSimulator(orderStore, publisher, cfg.Payment.MinLatency, cfg.Payment.MaxLatency)

	catalog, err := coupon.LoadCatalog(ctx, kv)
	if err != nil {
		logger.Warn("Failed to load coupon catalog, starting empty", zap.Error(err))
		catalog = coupon.NewCatalog(nil)
	}

	newMachine := func(userID string) *checkout.Machine {
		return checkout.NewMachine(cfg.Checkout.TaxRate, cartMgr, orderStore, backendClient, userID)
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	refresher := worker.NewRefreshWorker(orderStore, cfg.Orders.RefreshInterval)
	go refresher.Start(workerCtx)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(cartMgr, orderStore, simulator, catalog, newMachine)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	logger.Info("Server exited")
}
