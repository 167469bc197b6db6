package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
)

const (
	// SnapshotKey is the Redis key where the rule document is stored.
	SnapshotKey = "cep:rules:snapshot"
	// VersionKey is the Redis key where the rule-set version is stored.
	VersionKey = "cep:rules:version"
	// RolesKey is the Redis key holding the external role list.
	RolesKey = "cep:roles"
)

// document is the on-disk / in-Redis rule document shape. The enrollment
// job writes rules retrieved from the contract under a top-level "rules"
// key.
type document struct {
	Rules []Rule `json:"rules"`
}

func parseDocument(data []byte, version int64) (*RuleSet, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceMalformed, err)
	}
	return NewRuleSet(doc.Rules, version)
}

// FileSource loads the rule document from a JSON file on disk. Intended for
// local runs; it has no version channel.
type FileSource struct {
	Path string
}

// Load reads and parses the rule file.
func (f *FileSource) Load(ctx context.Context) (*RuleSet, error) {
	data, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, f.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file %s: %w", f.Path, err)
	}
	return parseDocument(data, 0)
}

// Version always returns 0: file sources are reloaded only on restart.
func (f *FileSource) Version(ctx context.Context) (int64, error) {
	return 0, nil
}

// RedisSource loads the rule document from a Redis snapshot key, with a
// separate version counter that lets the reloader detect changes cheaply.
type RedisSource struct {
	client *redis.Client
}

// NewRedisSource creates a source backed by the given Redis client.
func NewRedisSource(client *redis.Client) *RedisSource {
	return &RedisSource{client: client}
}

// Load reads and parses the rule snapshot from Redis.
func (r *RedisSource) Load(ctx context.Context) (*RuleSet, error) {
	data, err := r.client.Get(ctx, SnapshotKey).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: key %s", ErrSourceNotFound, SnapshotKey)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule snapshot from Redis: %w", err)
	}

	version, err := r.Version(ctx)
	if err != nil {
		return nil, err
	}
	return parseDocument([]byte(data), version)
}

// Version returns the current rule-set version, or 0 when no version has
// been written yet.
func (r *RedisSource) Version(ctx context.Context) (int64, error) {
	version, err := r.client.Get(ctx, VersionKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get rule version from Redis: %w", err)
	}
	return version, nil
}

// RoleList reads the external role list, a JSON array of role names stored
// by the enrollment job. New deployments add roles by updating the list, not
// by changing code.
func RoleList(ctx context.Context, client *redis.Client) ([]string, error) {
	data, err := client.Get(ctx, RolesKey).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("role list not found in Redis (key: %s)", RolesKey)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role list from Redis: %w", err)
	}

	var roles []string
	if err := json.Unmarshal([]byte(data), &roles); err != nil {
		return nil, fmt.Errorf("failed to unmarshal role list: %w", err)
	}
	return roles, nil
}
