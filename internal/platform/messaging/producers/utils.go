package producers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	partitionReadAttempts = 5
	partitionReadBackoff  = 2 * time.Second
)

// TopicAdmin is the subset of kafka.Conn used to provision topics
type TopicAdmin interface {
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	CreateTopics(topics ...kafka.TopicConfig) error
}

// ensureTopic creates topic when no partitions can be read for it.
// A freshly started broker may refuse metadata reads for a while, so reads are retried first.
func ensureTopic(admin TopicAdmin, topic string, partitions, replication int, backoff time.Duration, logger *slog.Logger) error {
	var (
		found []kafka.Partition
		err   error
	)
	for attempt := 1; attempt <= partitionReadAttempts; attempt++ {
		found, err = admin.ReadPartitions(topic)
		if err == nil {
			break
		}
		logger.Warn("Failed to read topic partitions", "topic", topic, "attempt", attempt, "error", err)
		time.Sleep(backoff)
	}
	if len(found) > 0 {
		logger.Info("Kafka topic already exists", "topic", topic, "partitions", len(found))
		return nil
	}

	if partitions <= 0 {
		partitions = 1
	}
	if replication <= 0 {
		replication = 1
	}
	logger.Info("Creating Kafka topic", "topic", topic, "partitions", partitions, "replication_factor", replication)
	if err := admin.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: replication,
	}); err != nil {
		return fmt.Errorf("failed to create kafka topic %s: %w", topic, err)
	}
	return nil
}

func dialAndEnsureTopic(brokers, topic string, partitions, replication int, logger *slog.Logger) error {
	conn, err := kafka.Dial("tcp", brokers)
	if err != nil {
		return fmt.Errorf("failed to dial kafka: %w", err)
	}
	defer conn.Close()
	return ensureTopic(conn, topic, partitions, replication, partitionReadBackoff, logger)
}
