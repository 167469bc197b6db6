// Package subscriber implements per-role delivery consumption. Each role of
// interest gets its own durable consumer group reader bound to that role's
// topic, running in its own goroutine, so a slow consumer for one role never
// blocks delivery to another.
package subscriber

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	kafkautil "cepbridge/internal/kafka"
	"cepbridge/internal/router"

	"github.com/segmentio/kafka-go"
)

// Handler is the per-message callback invoked for each alert delivered to a
// role.
type Handler func(role string, payload []byte)

// Manager owns the per-role readers.
type Manager struct {
	brokers     string
	groupPrefix string

	mu      sync.Mutex
	readers []*kafka.Reader
	wg      sync.WaitGroup
}

// NewManager creates a manager. groupPrefix namespaces the consumer groups
// so independent deployments do not steal each other's messages.
func NewManager(brokers, groupPrefix string) (*Manager, error) {
	if brokers == "" {
		return nil, fmt.Errorf("brokers cannot be empty")
	}
	if groupPrefix == "" {
		return nil, fmt.Errorf("groupPrefix cannot be empty")
	}
	return &Manager{brokers: brokers, groupPrefix: groupPrefix}, nil
}

// Start establishes one binding per role and begins consuming. The role set
// comes from an external list at process start; empty entries are skipped
// with a warning. Each role's loop exits when ctx is cancelled.
func (m *Manager) Start(ctx context.Context, roles []string, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	started := 0
	for _, role := range roles {
		name := router.NormalizeRole(role)
		if name == "" {
			slog.Warn("Skipping empty or malformed role in subscription list", "role", role)
			continue
		}

		topic := router.TopicForRole(name)
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:        kafkautil.ParseBrokers(m.brokers),
			Topic:          topic,
			GroupID:        fmt.Sprintf("%s.%s", m.groupPrefix, name),
			MinBytes:       1,
			MaxBytes:       10e6,
			MaxWait:        kafkautil.ReadTimeout,
			CommitInterval: kafkautil.CommitInterval,
			StartOffset:    kafka.FirstOffset,
		})

		m.mu.Lock()
		m.readers = append(m.readers, reader)
		m.mu.Unlock()

		m.wg.Add(1)
		go m.consumeLoop(ctx, name, reader, handler)

		slog.Info("Subscriber started for role", "role", name, "topic", topic)
		started++
	}

	if started == 0 {
		return fmt.Errorf("no valid roles to subscribe to")
	}
	return nil
}

// consumeLoop reads messages for one role until ctx is cancelled. Read
// errors are logged and the loop continues.
func (m *Manager) consumeLoop(ctx context.Context, role string, reader *kafka.Reader, handler Handler) {
	defer m.wg.Done()
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("Role subscriber stopped", "role", role)
				return
			}
			slog.Error("Failed to read role delivery", "role", role, "error", err)
			continue
		}
		handler(role, msg.Value)
	}
}

// Close closes every reader and waits for the consume loops to exit.
func (m *Manager) Close() error {
	m.mu.Lock()
	readers := m.readers
	m.readers = nil
	m.mu.Unlock()

	var lastErr error
	for _, r := range readers {
		if err := r.Close(); err != nil {
			slog.Error("Error closing role subscriber reader", "error", err)
			lastErr = err
		}
	}
	m.wg.Wait()
	return lastErr
}
