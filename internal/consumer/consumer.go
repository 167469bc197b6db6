// Package consumer provides Kafka consumer wrappers for the inbound
// telemetry topic and the ledger-alert topic.
package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"cepbridge/internal/events"
	kafkautil "cepbridge/internal/kafka"

	"github.com/segmentio/kafka-go"
)

// Consumer wraps a Kafka reader bound to one topic and consumer group,
// configured for at-least-once delivery.
type Consumer struct {
	reader *kafka.Reader
	topic  string
}

// NewConsumer creates a consumer for the given brokers, topic and group.
func NewConsumer(brokers, topic, groupID string) (*Consumer, error) {
	if brokers == "" {
		return nil, fmt.Errorf("brokers cannot be empty")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}
	if groupID == "" {
		return nil, fmt.Errorf("groupID cannot be empty")
	}

	brokerList := kafkautil.ParseBrokers(brokers)

	slog.Info("Initializing Kafka consumer",
		"brokers", brokerList,
		"topic", topic,
		"group_id", groupID,
	)

	// StartOffset only applies when no committed offset exists for the
	// consumer group.
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokerList,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        kafkautil.ReadTimeout,
		CommitInterval: kafkautil.CommitInterval,
		StartOffset:    kafka.FirstOffset,
	})

	return &Consumer{reader: reader, topic: topic}, nil
}

// ReadTelemetry reads the next telemetry message. A malformed body is not an
// error: it comes back as a raw-text fallback event.
func (c *Consumer) ReadTelemetry(ctx context.Context) (*events.TelemetryEvent, error) {
	msg, err := c.reader.ReadMessage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read message from Kafka: %w", err)
	}
	return events.ParseTelemetry(msg.Value), nil
}

// ReadRaw reads the next message and returns its body unparsed. The ledger
// worker uses this: alert payloads go through the typed field extractor, not
// a strict decode.
func (c *Consumer) ReadRaw(ctx context.Context) ([]byte, error) {
	msg, err := c.reader.ReadMessage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read message from Kafka: %w", err)
	}
	return msg.Value, nil
}

// Close gracefully closes the Kafka reader and releases resources.
func (c *Consumer) Close() error {
	slog.Info("Closing Kafka consumer", "topic", c.topic)
	if err := c.reader.Close(); err != nil {
		slog.Error("Error closing Kafka consumer", "error", err)
		return err
	}
	return nil
}
