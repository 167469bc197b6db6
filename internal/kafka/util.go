// Package kafka provides shared broker utilities used by all cepbridge binaries.
package kafka

import (
	"log/slog"
	"strings"

	"github.com/segmentio/kafka-go"
)

// ParseBrokers parses a comma-separated broker list and trims whitespace.
// Returns a slice of broker addresses.
func ParseBrokers(brokers string) []string {
	if brokers == "" {
		return nil
	}
	brokerList := strings.Split(brokers, ",")
	for i := range brokerList {
		brokerList[i] = strings.TrimSpace(brokerList[i])
	}
	return brokerList
}

// EnsureTopic attempts to create a topic if it does not exist.
// This is a best-effort operation; failures are logged but never fatal,
// since the broker may auto-create topics or the topic may be managed
// externally.
func EnsureTopic(broker, topic string) {
	conn, err := kafka.Dial("tcp", broker)
	if err != nil {
		slog.Warn("Could not connect to Kafka to check/create topic",
			"broker", broker,
			"topic", topic,
			"error", err,
		)
		return
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions(topic)
	if err == nil && len(partitions) > 0 {
		return
	}

	topicConfig := kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     3,
		ReplicationFactor: 1,
	}

	if err := conn.CreateTopics(topicConfig); err != nil {
		slog.Warn("Could not create topic (may need to be created manually)",
			"topic", topic,
			"error", err,
		)
		return
	}

	slog.Info("Created topic",
		"topic", topic,
		"partitions", 3,
		"replication_factor", 1,
	)
}
