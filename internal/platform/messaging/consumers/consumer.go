package consumers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/go-exchange-reconciler/internal/config"
)

const (
	defaultMaxAttempts = 5
	defaultRetryDelay  = time.Second
)

// MessageHandler processes one message. A returned error makes the consumer retry it.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Reader is the subset of kafka.Reader the consumer uses
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer feeds messages from one topic to a handler in partition order
type KafkaConsumer struct {
	reader      Reader
	logger      *slog.Logger
	maxAttempts int
	retryDelay  time.Duration
	sleep       func(ctx context.Context, d time.Duration)
}

func NewKafkaConsumer(_ context.Context, logger *slog.Logger, cfg *config.KafkaConfig) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     []string{cfg.Brokers},
		Topic:       cfg.NotificationTopic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		MaxWait:     cfg.MaxWait,
		StartOffset: kafka.FirstOffset,
	})
	return newKafkaConsumer(logger.With("topic", cfg.NotificationTopic, "group_id", cfg.ConsumerGroup), reader)
}

func newKafkaConsumer(logger *slog.Logger, reader Reader) *KafkaConsumer {
	return &KafkaConsumer{
		reader:      reader,
		logger:      logger,
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
		sleep:       sleepContext,
	}
}

// Consume blocks until ctx is done. Each message is retried until the handler
// accepts it and only then committed, so a failing message holds its partition
// instead of being skipped by the next commit.
func (c *KafkaConsumer) Consume(ctx context.Context, handler MessageHandler) error {
	c.logger.Info("Consuming Kafka topic")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Context canceled, stopping consumer")
				return nil
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			c.logger.Error("Failed to fetch message from Kafka", "error", err)
			c.sleep(ctx, c.retryDelay)
			continue
		}

		log := c.logger.With("partition", msg.Partition, "offset", msg.Offset, "key", string(msg.Key))
		log.Debug("Received message from Kafka")

		if !c.handle(ctx, log, handler, msg) {
			log.Info("Context canceled before message was handled, offset left uncommitted")
			return nil
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			log.Error("Failed to commit message after successful processing", "error", err)
			continue
		}
		log.Debug("Message committed")
	}
}

// handle reports false only when ctx ends before the handler accepts msg
func (c *KafkaConsumer) handle(ctx context.Context, log *slog.Logger, handler MessageHandler, msg kafka.Message) bool {
	for attempt := 1; ; attempt++ {
		err := handler(ctx, msg.Key, msg.Value)
		if err == nil {
			return true
		}
		log.Warn("Failed to process message", "attempt", attempt, "error", err)
		if attempt == c.maxAttempts {
			log.Error("Message keeps failing, holding partition until it is handled", "attempts", attempt)
		}

		c.sleep(ctx, c.backoff(attempt))
		if ctx.Err() != nil {
			return false
		}
	}
}

// backoff grows linearly and is capped at maxAttempts retry delays
func (c *KafkaConsumer) backoff(attempt int) time.Duration {
	if attempt > c.maxAttempts {
		attempt = c.maxAttempts
	}
	return c.retryDelay * time.Duration(attempt)
}

func (c *KafkaConsumer) Close() error {
	if c.reader != nil {
		return c.reader.Close()
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
