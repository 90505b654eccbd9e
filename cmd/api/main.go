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

	"github.com/Pesokrava/review_service/internal/clients"
	"github.com/Pesokrava/review_service/internal/config"
	httpDelivery "github.com/Pesokrava/review_service/internal/delivery/http"
	"github.com/Pesokrava/review_service/internal/delivery/http/handler"
	"github.com/Pesokrava/review_service/internal/events"
	"github.com/Pesokrava/review_service/internal/pkg/cache"
	"github.com/Pesokrava/review_service/internal/pkg/database"
	"github.com/Pesokrava/review_service/internal/pkg/logger"
	cacheRepo "github.com/Pesokrava/review_service/internal/repository/cache"
	"github.com/Pesokrava/review_service/internal/repository/postgres"
	"github.com/Pesokrava/review_service/internal/transport"
	"github.com/Pesokrava/review_service/internal/usecase/review"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(cfg.Env)
	appLogger.Info("Starting Review Service API...")

	appLogger.Info("Connecting to PostgreSQL...")
	db, err := database.WaitForDB(cfg, 10, 2*time.Second)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", err)
	}
	defer db.Close()
	appLogger.Info("Connected to PostgreSQL successfully")

	if err := database.RunMigrations(db); err != nil {
		appLogger.Fatal("Failed to run migrations", err)
	}

	appLogger.Info("Connecting to Redis...")
	redisClient, err := cache.WaitForRedis(cfg, 10, 2*time.Second)
	if err != nil {
		appLogger.Fatal("Failed to connect to Redis", err)
	}
	defer redisClient.Close()
	appLogger.Info("Connected to Redis successfully")

	appLogger.Infof("Initializing %s event transport...", cfg.Events.Transport)
	provider, err := transport.Shared(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize event transport", err)
	}
	defer func() {
		if err := transport.CloseShared(); err != nil {
			appLogger.Warnf("Failed to close event transport: %v", err)
		}
	}()

	publisher := events.NewPublisher(provider, cfg.Events.Topic, cfg.Service.Name, appLogger)

	// Sibling-service checks ride the sidecar's invocation channel when one
	// is present; otherwise they go direct over HTTP.
	var verifier interface {
		review.ProductChecker
		review.PurchaseChecker
	}
	if invoker, ok := provider.(transport.ServiceInvoker); ok {
		verifier = clients.NewSidecarVerifier(invoker, appLogger)
	} else {
		verifier = clients.NewHTTPVerifier(cfg, appLogger)
	}

	reviewRepo := postgres.NewReviewRepository(db)
	redisCache := cacheRepo.NewRedisCache(
		redisClient,
		cfg.Cache.RatingSummaryTTL,
		cfg.Cache.ReviewsListTTL,
	)

	reviewService := review.NewService(
		reviewRepo,
		redisCache,
		publisher,
		verifier,
		verifier,
		cfg.Policy,
		appLogger,
	)

	reviewHandler := handler.NewReviewHandler(reviewService, appLogger)

	router := httpDelivery.NewRouter(reviewHandler, cfg, appLogger)
	httpHandler := router.Setup()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      httpHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		appLogger.Infof("HTTP server listening on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("HTTP server failed", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		appLogger.Fatal("Server forced to shutdown", err)
	}

	appLogger.Info("Server stopped gracefully")
}
