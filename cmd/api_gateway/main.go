package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/go-exchange-reconciler/internal/api_gateway"
	"github.com/go-exchange-reconciler/internal/api_gateway/service"
	"github.com/go-exchange-reconciler/internal/config"
	"github.com/go-exchange-reconciler/internal/data/mongo"
	"github.com/go-exchange-reconciler/internal/data/postgres"
	redisstore "github.com/go-exchange-reconciler/internal/data/redis"
	"github.com/go-exchange-reconciler/internal/logger"
	"github.com/go-exchange-reconciler/internal/platform/counterparty"
	"github.com/go-exchange-reconciler/internal/platform/identity"
	"github.com/go-exchange-reconciler/internal/platform/messaging/producers"
	"github.com/go-exchange-reconciler/internal/platform/metrics"
	"github.com/go-exchange-reconciler/internal/platform/persistence"
	"github.com/go-exchange-reconciler/internal/reconciler/exchange"
	"github.com/go-exchange-reconciler/internal/reconciler/lock"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	redisDB, err := persistence.NewRedisDB(appCtx, log, &cfg.Redis)
	if err != nil {
		log.Error("Failed to initialize Redis", "error", err)
		os.Exit(1)
	}

	// Replies to inbound SMS go out through the same topic the poller publishes to
	notifier, err := producers.NewNotificationProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize notification producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	userRepo := postgres.NewUserRepository(log, postgresDB)
	transactionRepo := postgres.NewTransactionRepository(log, postgresDB)
	quoteRepo := postgres.NewQuoteRepository(log, postgresDB)
	ledgerRepo := mongo.NewLedgerRepository(log, mongoDB.Database())
	if err := ledgerRepo.EnsureIndexes(appCtx); err != nil {
		log.Error("Failed to ensure ledger indexes", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	locks := lock.NewManager(log, redisstore.NewLockStore(log, redisDB.Client()),
		cfg.Reconciler.LockKeyPrefix, cfg.Reconciler.LockTTL)
	machine := exchange.NewStateMachine(log, exchange.Dependencies{
		Transactions:  transactionRepo,
		Quotes:        quoteRepo,
		Notifications: postgres.NewNotificationRepository(log, postgresDB),
		Ledger:        ledgerRepo,
		Publisher:     notifier,
		Recorder:      metrics.NewReconciler(registry),
	})

	// Initialize services
	replyService := service.NewReplyService(log, cfg.SMS.Shortcode, service.ReplyDependencies{
		Users:        userRepo,
		Transactions: transactionRepo,
		Quotes:       quoteRepo,
		Ratings:      postgres.NewRatingRepository(log, postgresDB),
		Identities:   identity.NewResolver(),
		Counterparty: counterparty.NewHTTPClient(log, cfg.Counterparty.Endpoints, cfg.Counterparty.RequestTimeout),
		Locks:        locks,
		Machine:      machine,
		Publisher:    notifier,
	})
	historyService := service.NewHistoryService(log, userRepo, transactionRepo, ledgerRepo, locks)

	// Initialize REST server
	server := api_gateway.NewServer(log, cfg, replyService, historyService, api_gateway.Observability{
		Requests: metrics.NewHTTP(registry),
		Metrics:  metrics.Handler(registry),
	})
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Stop accepting requests before closing the stores they use
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	if err = notifier.Close(); err != nil {
		log.Error("Error closing Kafka producer", "error", err)
	}

	if err = redisDB.Close(); err != nil {
		log.Error("Error closing Redis connection", "error", err)
	}

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	postgresDB.Close()

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
