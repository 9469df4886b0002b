package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/go-exchange-reconciler/internal/config"
	"github.com/go-exchange-reconciler/internal/domain/notification"
)

// NotificationProducer queues rendered user messages for the SMS dispatcher.
// Messages are keyed by user id so one user's messages keep their order.
type NotificationProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
	now    func() time.Time
}

func NewNotificationProducer(_ context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*NotificationProducer, error) {
	if cfg.NotificationTopic == "" {
		return nil, fmt.Errorf("kafka notification topic is not configured")
	}
	if err := dialAndEnsureTopic(cfg.Brokers, cfg.NotificationTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger); err != nil {
		return nil, fmt.Errorf("failed to ensure notification topic %s exists: %w", cfg.NotificationTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.NotificationTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: cfg.MaxWait,
	}
	return newNotificationProducer(logger, writer, cfg.NotificationTopic), nil
}

func newNotificationProducer(logger *slog.Logger, writer KafkaWriter, topic string) *NotificationProducer {
	return &NotificationProducer{
		logger: logger.With("component", "notification_producer"),
		writer: writer,
		topic:  topic,
		now:    time.Now,
	}
}

// Send implements notification.Publisher
func (p *NotificationProducer) Send(ctx context.Context, userID uuid.UUID, text string) error {
	event := notification.Event{
		ID:        uuid.New(),
		UserID:    userID,
		Text:      text,
		CreatedAt: p.now().UTC(),
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal notification event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(userID.String()),
		Value: value,
		Time:  event.CreatedAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish notification", "topic", p.topic, "user_id", userID.String(), "error", err)
		return fmt.Errorf("failed to publish notification to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published notification", "topic", p.topic, "user_id", userID.String(), "notification_id", event.ID.String())
	return nil
}

func (p *NotificationProducer) Close() error {
	p.logger.Info("Closing notification producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
