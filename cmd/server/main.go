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

	"github.com/kcb43/profitorbit.io-sub006/config"
	"github.com/kcb43/profitorbit.io-sub006/internal/api"
	"github.com/kcb43/profitorbit.io-sub006/internal/broker"
	"github.com/kcb43/profitorbit.io-sub006/internal/marketplace"
	"github.com/kcb43/profitorbit.io-sub006/internal/redisclient"
	"github.com/kcb43/profitorbit.io-sub006/internal/service"
	"github.com/kcb43/profitorbit.io-sub006/internal/store"
	"github.com/kcb43/profitorbit.io-sub006/internal/util"
	"github.com/kcb43/profitorbit.io-sub006/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting crosslisting service")

	tp, err := util.InitTracer("crosslisting-service", cfg.Observ.JaegerEndpoint)
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

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicListing)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	adapters := make(map[string]marketplace.Adapter, len(cfg.Marketplace.Names))
	timeout := time.Duration(cfg.Marketplace.TimeoutSeconds) * time.Second
	for _, name := range cfg.Marketplace.Names {
		adapters[name] = marketplace.NewHTTPAdapter(name, fmt.Sprintf(cfg.Marketplace.GatewayTemplate, name), timeout)
	}

	orchestrator := service.NewOrchestrator(adapters, db, db, eventPublisher, cfg.Listing.DispatchConcurrency)
	validator := service.NewPreflightValidator(nil, cfg.Listing.AutoFillConfidence)

	defaultOpts := service.ListOptions{PriceMultiplier: cfg.Listing.PriceMultiplier}
	submit := func(ctx context.Context, session *service.SmartListingSession, mkt string) error {
		cred, err := db.GetCredential(ctx, mkt)
		if err != nil {
			return err
		}
		_, err = orchestrator.ListOnMarketplace(ctx, session.InventoryItemID, mkt, cred, defaultOpts)
		return err
	}
	onSuccess := func(marketplaces []string) {
		logger.Info("Smart listing dispatched", zap.Strings("marketplaces", marketplaces))
	}
	controller := service.NewSmartListingController(validator, submit, onSuccess)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	syncWorker := worker.NewSyncWorker(orchestrator, db, time.Duration(cfg.Listing.SyncIntervalSeconds)*time.Second)
	go func() {
		if err := syncWorker.Start(workerCtx); err != nil && err != context.Canceled {
			log.Printf("Sync worker error: %v", err)
		}
	}()

	auditConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicListing, cfg.Kafka.ConsumerGroup)
	auditWorker := worker.NewAuditWorker(auditConsumer, db)
	go func() {
		if err := auditWorker.Start(workerCtx); err != nil && err != context.Canceled {
			log.Printf("Audit worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(orchestrator, controller, db, redisClient, time.Duration(cfg.Listing.SessionTTLSeconds)*time.Second)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	syncWorker.Stop()
	auditWorker.Stop()

	log.Println("Server exited")
}
