package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cepbridge/internal/config"
	"cepbridge/internal/events"
	kafkautil "cepbridge/internal/kafka"
	"cepbridge/internal/producer"
	"cepbridge/internal/shared"
)

func main() {
	cfg := &config.SensorPublisher{}
	flag.StringVar(&cfg.KafkaBrokers, "kafka-brokers", shared.GetEnvOrDefault("KAFKA_BROKERS", "localhost:9092"), "Kafka broker addresses (comma-separated)")
	flag.StringVar(&cfg.TelemetryTopic, "telemetry-topic", "sensors.data", "Kafka topic for telemetry")
	flag.StringVar(&cfg.SensorID, "sensor-id", "temperature_sensor_1", "Sensor identity to publish as")
	flag.DurationVar(&cfg.Interval, "interval", time.Second, "Interval between readings")
	flag.Float64Var(&cfg.MinValue, "min-value", 20, "Lower bound of the generated value range")
	flag.Float64Var(&cfg.MaxValue, "max-value", 32, "Upper bound of the generated value range")
	flag.IntVar(&cfg.MalformedEvery, "malformed-every", 0, "Publish a malformed payload every N readings (0 to disable)")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	slog.Info("Starting sensor publisher",
		"kafka_brokers", cfg.KafkaBrokers,
		"telemetry_topic", cfg.TelemetryTopic,
		"sensor_id", cfg.SensorID,
		"interval", cfg.Interval,
	)

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	kafkaProducer, err := producer.NewProducer(cfg.KafkaBrokers)
	if err != nil {
		slog.Error("Failed to create Kafka producer", "error", err)
		os.Exit(1)
	}
	defer kafkaProducer.Close()

	kafkautil.EnsureTopic(kafkautil.ParseBrokers(cfg.KafkaBrokers)[0], cfg.TelemetryTopic)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	published := 0
	for {
		select {
		case <-ctx.Done():
			slog.Info("Sensor publisher stopped", "published", published)
			return
		case <-ticker.C:
			published++

			var payload []byte
			if cfg.MalformedEvery > 0 && published%cfg.MalformedEvery == 0 {
				payload = []byte(fmt.Sprintf("not-json reading #%d", published))
			} else {
				reading := events.TelemetryEvent{
					SensorID:  cfg.SensorID,
					Value:     cfg.MinValue + rand.Float64()*(cfg.MaxValue-cfg.MinValue),
					Timestamp: time.Now().UTC().Format(time.RFC3339),
				}
				payload, err = json.Marshal(reading)
				if err != nil {
					slog.Error("Failed to marshal reading", "error", err)
					continue
				}
			}

			if err := kafkaProducer.Publish(ctx, cfg.TelemetryTopic, []byte(cfg.SensorID), payload); err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Error("Failed to publish reading", "error", err)
				continue
			}
			slog.Info("Published reading", "sensor_id", cfg.SensorID, "payload", string(payload))
		}
	}
}
