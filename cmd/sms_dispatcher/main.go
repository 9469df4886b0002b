package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/go-exchange-reconciler/internal/config"
	"github.com/go-exchange-reconciler/internal/data/postgres"
	"github.com/go-exchange-reconciler/internal/logger"
	"github.com/go-exchange-reconciler/internal/platform/messaging/consumers"
	"github.com/go-exchange-reconciler/internal/platform/messaging/producers"
	"github.com/go-exchange-reconciler/internal/platform/metrics"
	"github.com/go-exchange-reconciler/internal/platform/persistence"
	"github.com/go-exchange-reconciler/internal/platform/sms"
	"github.com/go-exchange-reconciler/internal/sms_dispatcher/consumer"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("sms_dispatcher")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting SMS Dispatcher",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	// A producer without DLQ_TOPIC drops undeliverable messages instead of parking them
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}

	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	registry := prometheus.NewRegistry()
	eventHandler := consumer.NewNotificationEventHandler(
		log,
		postgres.NewUserRepository(log, postgresDB),
		sms.NewClient(log, &cfg.SMS),
		dlqProducer,
		metrics.NewDispatcher(registry),
	)

	metricsServer := metrics.NewServer(cfg.Metrics.Port, registry)

	errChan := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Kafka consumer",
			"topic", cfg.Kafka.NotificationTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := kafkaConsumer.Consume(appCtx, eventHandler.HandleMessage); err != nil {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
		}
	}()

	go func() {
		log.Info("Starting metrics server", "port", cfg.Metrics.Port)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("metrics server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	// The in-flight message finishes before the stores it needs are closed
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("Consumer stopped")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	if err = metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Error during metrics server shutdown", "error", err)
	}

	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	if err = dlqProducer.Close(); err != nil {
		log.Error("Error closing DLQ Kafka producer", "error", err)
	}

	postgresDB.Close()

	if serviceErr != nil {
		log.Error("SMS Dispatcher shutdown with errors", "error", serviceErr)
		os.Exit(1)
	}
	log.Info("SMS Dispatcher shutdown completed successfully")
}
