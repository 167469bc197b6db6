// Package producer provides Kafka publish functionality for derived alerts.
// A single writer serves every outbound topic; the topic is chosen per
// message so role fan-out and the ledger-alert path share one connection
// pool.
package producer

import (
	"context"
	"fmt"
	"log/slog"

	kafkautil "cepbridge/internal/kafka"

	"github.com/segmentio/kafka-go"
)

// Producer wraps a Kafka writer configured for synchronous, leader-acked
// writes.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a producer for the given brokers.
func NewProducer(brokers string) (*Producer, error) {
	if brokers == "" {
		return nil, fmt.Errorf("brokers cannot be empty")
	}

	brokerList := kafkautil.ParseBrokers(brokers)

	slog.Info("Initializing Kafka producer", "brokers", brokerList)

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokerList...),
		Balancer:     &kafka.Hash{},
		WriteTimeout: kafkautil.WriteTimeout,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	return &Producer{writer: writer}, nil
}

// Publish writes one message to the given topic, keyed for partition
// locality. The write is synchronous and bounded by the writer timeout.
func (p *Producer) Publish(ctx context.Context, topic string, key, value []byte) error {
	msg := kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to topic %s: %w", topic, err)
	}
	return nil
}

// Close gracefully closes the Kafka writer and releases resources.
func (p *Producer) Close() error {
	slog.Info("Closing Kafka producer")
	if err := p.writer.Close(); err != nil {
		slog.Error("Error closing Kafka producer", "error", err)
		return err
	}
	return nil
}
