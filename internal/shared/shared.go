// Package shared provides small helpers used across the cepbridge binaries.
package shared

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
)

// GetEnvOrDefault returns the environment variable value or a default if not set.
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// ConnectRedis creates and validates a Redis connection.
// Returns the client and nil on success, or nil and an error on failure.
func ConnectRedis(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	return client, nil
}
