package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

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
	"github.com/go-exchange-reconciler/internal/reconciler/dispatch"
	"github.com/go-exchange-reconciler/internal/reconciler/exchange"
	"github.com/go-exchange-reconciler/internal/reconciler/lock"
	"github.com/go-exchange-reconciler/internal/reconciler/poller"
)

// app holds everything one poller process owns
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	registry *prometheus.Registry
	poller   *poller.Poller

	postgres   *persistence.PostgresDB
	mongo      *persistence.MongoDB
	redis      *persistence.RedisDB
	producer   *producers.NotificationProducer
	dispatcher *dispatch.Dispatcher
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig(configName)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	a := &app{
		cfg:      cfg,
		log:      logger.NewLogger(cfg),
		registry: prometheus.NewRegistry(),
	}
	if err := a.connect(ctx); err != nil {
		a.close(context.WithoutCancel(ctx))
		return nil, err
	}
	return a, nil
}

func (a *app) connect(ctx context.Context) error {
	var err error
	if a.postgres, err = persistence.NewPostgresDB(ctx, a.log, &a.cfg.Postgres); err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	if a.mongo, err = persistence.NewMongoDB(ctx, a.log, &a.cfg.MongoDB); err != nil {
		return fmt.Errorf("failed to initialize MongoDB: %w", err)
	}
	if a.redis, err = persistence.NewRedisDB(ctx, a.log, &a.cfg.Redis); err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	if a.producer, err = producers.NewNotificationProducer(ctx, a.log, &a.cfg.Kafka); err != nil {
		return fmt.Errorf("failed to initialize notification producer: %w", err)
	}

	ledgers := mongo.NewLedgerRepository(a.log, a.mongo.Database())
	if err := ledgers.EnsureIndexes(ctx); err != nil {
		return err
	}

	recorder := metrics.NewReconciler(a.registry)
	if a.dispatcher, err = dispatch.NewDispatcher(a.log, a.producer, a.cfg.WorkerPool.Size, recorder); err != nil {
		return err
	}
	go a.dispatcher.Drain(context.WithoutCancel(ctx))

	transactions := postgres.NewTransactionRepository(a.log, a.postgres)
	machine := exchange.NewStateMachine(a.log, exchange.Dependencies{
		Transactions:  transactions,
		Quotes:        postgres.NewQuoteRepository(a.log, a.postgres),
		Notifications: postgres.NewNotificationRepository(a.log, a.postgres),
		Ledger:        ledgers,
		Publisher:     a.dispatcher,
		Recorder:      recorder,
	})

	rc := a.cfg.Reconciler
	a.poller = poller.New(a.log, poller.Config{
		PassBudget:   rc.PassBudget,
		IdleInterval: rc.IdleInterval,
		BatchSize:    rc.BatchSize,
		FetchTimeout: rc.FetchTimeout,
	}, poller.Dependencies{
		Transactions: transactions,
		Users:        postgres.NewUserRepository(a.log, a.postgres),
		Locks:        lock.NewManager(a.log, redisstore.NewLockStore(a.log, a.redis.Client()), rc.LockKeyPrefix, rc.LockTTL),
		Identities:   identity.NewResolver(),
		Counterparty: counterparty.NewHTTPClient(a.log, a.cfg.Counterparty.Endpoints, a.cfg.Counterparty.RequestTimeout),
		Machine:      machine,
		Recorder:     recorder,
	})
	return nil
}

// close waits for queued notifications before tearing down the connections they need
func (a *app) close(ctx context.Context) {
	if a.dispatcher != nil {
		a.dispatcher.Shutdown()
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.log.Error("Error closing Kafka producer", "error", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Error("Error closing Redis connection", "error", err)
		}
	}
	if a.mongo != nil {
		if err := a.mongo.Close(ctx); err != nil {
			a.log.Error("Error closing MongoDB connection", "error", err)
		}
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
}
