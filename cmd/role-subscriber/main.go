package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"cepbridge/internal/config"
	"cepbridge/internal/rules"
	"cepbridge/internal/shared"
	"cepbridge/internal/subscriber"
)

func main() {
	cfg := &config.RoleSubscriber{}
	flag.StringVar(&cfg.KafkaBrokers, "kafka-brokers", shared.GetEnvOrDefault("KAFKA_BROKERS", "localhost:9092"), "Kafka broker addresses (comma-separated)")
	flag.StringVar(&cfg.GroupPrefix, "group-prefix", "role-subscriber", "Consumer group prefix for role bindings")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", shared.GetEnvOrDefault("REDIS_ADDR", "localhost:6379"), "Redis server address holding the external role list")
	flag.StringVar(&cfg.Roles, "roles", "", "Comma-separated role list (overrides the Redis role list)")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	slog.Info("Starting role subscriber",
		"kafka_brokers", cfg.KafkaBrokers,
		"group_prefix", cfg.GroupPrefix,
		"redis_addr", cfg.RedisAddr,
		"roles", cfg.Roles,
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

	// Role set comes from the external list so new deployments add roles
	// without a code change; the flag exists for local runs.
	var roles []string
	if cfg.Roles != "" {
		roles = strings.Split(cfg.Roles, ",")
	} else {
		redisClient, err := shared.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()

		roles, err = rules.RoleList(ctx, redisClient)
		if err != nil {
			slog.Error("Failed to load role list", "error", err)
			os.Exit(1)
		}
	}

	manager, err := subscriber.NewManager(cfg.KafkaBrokers, cfg.GroupPrefix)
	if err != nil {
		slog.Error("Failed to create subscription manager", "error", err)
		os.Exit(1)
	}
	defer manager.Close()

	err = manager.Start(ctx, roles, func(role string, payload []byte) {
		fmt.Printf("[%s] %s\n", strings.ToUpper(role), payload)
	})
	if err != nil {
		slog.Error("Failed to start role subscriptions", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	slog.Info("Role subscriber stopped")
}
