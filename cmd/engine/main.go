package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cepbridge/internal/config"
	"cepbridge/internal/consumer"
	"cepbridge/internal/dispatcher"
	kafkautil "cepbridge/internal/kafka"
	"cepbridge/internal/metrics"
	"cepbridge/internal/producer"
	"cepbridge/internal/router"
	"cepbridge/internal/rules"
	"cepbridge/internal/shared"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := &config.Engine{}
	flag.StringVar(&cfg.KafkaBrokers, "kafka-brokers", shared.GetEnvOrDefault("KAFKA_BROKERS", "localhost:9092"), "Kafka broker addresses (comma-separated)")
	flag.StringVar(&cfg.TelemetryTopic, "telemetry-topic", "sensors.data", "Kafka topic for inbound telemetry")
	flag.StringVar(&cfg.LedgerAlertTopic, "ledger-alert-topic", "alerts.ledger", "Kafka topic for alerts destined for ledger submission (empty to disable)")
	flag.StringVar(&cfg.ConsumerGroupID, "consumer-group-id", "cep-engine-group", "Kafka consumer group ID for telemetry")
	flag.StringVar(&cfg.RulesFile, "rules-file", "", "Path to a local rule document (overrides Redis rule source)")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", shared.GetEnvOrDefault("REDIS_ADDR", "localhost:6379"), "Redis server address (rule snapshot + metrics)")
	flag.DurationVar(&cfg.PollInterval, "poll-interval", 5*time.Second, "Interval for polling the rule-set version")
	flag.BoolVar(&cfg.MetricsEnabled, "metrics", true, "Report service metrics to Redis")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	slog.Info("Starting CEP engine",
		"kafka_brokers", cfg.KafkaBrokers,
		"telemetry_topic", cfg.TelemetryTopic,
		"ledger_alert_topic", cfg.LedgerAlertTopic,
		"consumer_group_id", cfg.ConsumerGroupID,
		"rules_file", cfg.RulesFile,
		"redis_addr", cfg.RedisAddr,
		"poll_interval", cfg.PollInterval,
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

	// Rule source: a local file wins for local runs; otherwise the Redis
	// snapshot written by the enrollment job.
	var redisClient *redis.Client
	var source rules.Source
	if cfg.RulesFile != "" {
		source = &rules.FileSource{Path: cfg.RulesFile}
	} else {
		var err error
		redisClient, err = shared.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		source = rules.NewRedisSource(redisClient)
	}

	store := rules.NewStore(source)
	if err := store.Load(ctx); err != nil {
		slog.Error("Failed to load initial rule snapshot", "error", err)
		os.Exit(1)
	}

	// Hot reload only makes sense with a versioned source.
	if cfg.RulesFile == "" {
		reloader := rules.NewReloader(store, source, cfg.PollInterval)
		if err := reloader.Start(ctx); err != nil {
			slog.Error("Failed to start rule reloader", "error", err)
			os.Exit(1)
		}
	}

	var recorder metrics.Recorder = metrics.Noop{}
	if cfg.MetricsEnabled && redisClient != nil {
		collector := metrics.NewCollector("cep-engine", redisClient)
		collector.Start(ctx)
		defer collector.Stop()
		recorder = collector
	}

	kafkaConsumer, err := consumer.NewConsumer(cfg.KafkaBrokers, cfg.TelemetryTopic, cfg.ConsumerGroupID)
	if err != nil {
		slog.Error("Failed to create telemetry consumer", "error", err)
		os.Exit(1)
	}
	defer kafkaConsumer.Close()

	kafkaProducer, err := producer.NewProducer(cfg.KafkaBrokers)
	if err != nil {
		slog.Error("Failed to create Kafka producer", "error", err)
		os.Exit(1)
	}
	defer kafkaProducer.Close()

	if cfg.LedgerAlertTopic != "" {
		kafkautil.EnsureTopic(kafkautil.ParseBrokers(cfg.KafkaBrokers)[0], cfg.LedgerAlertTopic)
	}

	alertRouter := router.NewRouter(kafkaProducer)
	disp := dispatcher.NewDispatcher(kafkaConsumer, store, alertRouter, kafkaProducer, cfg.LedgerAlertTopic, recorder)

	if err := disp.Run(ctx); err != nil {
		slog.Error("Telemetry dispatch failed", "error", err)
		os.Exit(1)
	}

	slog.Info("CEP engine stopped")
}
