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
	"cepbridge/internal/ledger"
	"cepbridge/internal/metrics"
	"cepbridge/internal/rules"
	"cepbridge/internal/shared"
	"cepbridge/internal/submitter"
)

func main() {
	cfg := &config.LedgerWorker{}
	flag.StringVar(&cfg.KafkaBrokers, "kafka-brokers", shared.GetEnvOrDefault("KAFKA_BROKERS", "localhost:9092"), "Kafka broker addresses (comma-separated)")
	flag.StringVar(&cfg.LedgerAlertTopic, "ledger-alert-topic", "alerts.ledger", "Kafka topic carrying alerts destined for ledger submission")
	flag.StringVar(&cfg.ConsumerGroupID, "consumer-group-id", "ledger-worker-group", "Kafka consumer group ID")
	flag.StringVar(&cfg.RulesFile, "rules-file", "", "Path to a local rule document (overrides Redis rule source)")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", shared.GetEnvOrDefault("REDIS_ADDR", "localhost:6379"), "Redis server address (rule snapshot + metrics)")
	flag.StringVar(&cfg.GatewayURL, "gateway-url", shared.GetEnvOrDefault("GATEWAY_URL", "http://localhost:8801"), "Ledger gateway base URL")
	flag.StringVar(&cfg.Identity, "identity", shared.GetEnvOrDefault("LEDGER_IDENTITY", "Regulator2"), "Signing identity for ledger calls")
	flag.StringVar(&cfg.InitParamsFile, "init-params-file", "", "Path to the default contract initialization parameters (JSON)")
	flag.IntVar(&cfg.Workers, "workers", 10, "Number of concurrent submission workers")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	slog.Info("Starting ledger worker",
		"kafka_brokers", cfg.KafkaBrokers,
		"ledger_alert_topic", cfg.LedgerAlertTopic,
		"consumer_group_id", cfg.ConsumerGroupID,
		"gateway_url", cfg.GatewayURL,
		"identity", cfg.Identity,
		"workers", cfg.Workers,
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

	var initParams []byte
	if cfg.InitParamsFile != "" {
		var err error
		initParams, err = os.ReadFile(cfg.InitParamsFile)
		if err != nil {
			slog.Error("Failed to read init parameters file", "path", cfg.InitParamsFile, "error", err)
			os.Exit(1)
		}
	}

	var source rules.Source
	var recorder metrics.Recorder = metrics.Noop{}
	if cfg.RulesFile != "" {
		source = &rules.FileSource{Path: cfg.RulesFile}
	} else {
		redisClient, err := shared.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		source = rules.NewRedisSource(redisClient)

		collector := metrics.NewCollector("ledger-worker", redisClient)
		collector.Start(ctx)
		defer collector.Stop()
		recorder = collector
	}

	store := rules.NewStore(source)
	if err := store.Load(ctx); err != nil {
		slog.Error("Failed to load initial rule snapshot", "error", err)
		os.Exit(1)
	}

	if cfg.RulesFile == "" {
		reloader := rules.NewReloader(store, source, 5*time.Second)
		if err := reloader.Start(ctx); err != nil {
			slog.Error("Failed to start rule reloader", "error", err)
			os.Exit(1)
		}
	}

	kafkaConsumer, err := consumer.NewConsumer(cfg.KafkaBrokers, cfg.LedgerAlertTopic, cfg.ConsumerGroupID)
	if err != nil {
		slog.Error("Failed to create ledger-alert consumer", "error", err)
		os.Exit(1)
	}
	defer kafkaConsumer.Close()

	cache := ledger.NewConnectionCache(cfg.GatewayURL)
	sub := submitter.NewSubmitter(store, cache, cfg.Identity, initParams)

	if err := processAlerts(ctx, kafkaConsumer, sub, cfg.Workers, recorder); err != nil {
		slog.Error("Alert submission processing failed", "error", err)
		os.Exit(1)
	}

	slog.Info("Ledger worker stopped")
}
