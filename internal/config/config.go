// Package config provides configuration parsing and validation for the
// cepbridge binaries. Each binary populates its struct from flags and calls
// Validate before starting.
package config

import (
	"fmt"
	"time"
)

// Engine holds configuration for the CEP engine binary.
type Engine struct {
	KafkaBrokers     string
	TelemetryTopic   string
	LedgerAlertTopic string
	ConsumerGroupID  string
	RulesFile        string
	RedisAddr        string
	PollInterval     time.Duration
	MetricsEnabled   bool
}

// Validate checks that all required engine fields are set.
func (c *Engine) Validate() error {
	if c.KafkaBrokers == "" {
		return fmt.Errorf("kafka-brokers cannot be empty")
	}
	if c.TelemetryTopic == "" {
		return fmt.Errorf("telemetry-topic cannot be empty")
	}
	if c.ConsumerGroupID == "" {
		return fmt.Errorf("consumer-group-id cannot be empty")
	}
	if c.RulesFile == "" && c.RedisAddr == "" {
		return fmt.Errorf("either rules-file or redis-addr must be set")
	}
	if c.RedisAddr != "" && c.PollInterval <= 0 {
		return fmt.Errorf("poll-interval must be > 0")
	}
	return nil
}

// LedgerWorker holds configuration for the ledger submission binary.
type LedgerWorker struct {
	KafkaBrokers     string
	LedgerAlertTopic string
	ConsumerGroupID  string
	RulesFile        string
	RedisAddr        string
	GatewayURL       string
	Identity         string
	InitParamsFile   string
	Workers          int
}

// Validate checks that all required worker fields are set.
func (c *LedgerWorker) Validate() error {
	if c.KafkaBrokers == "" {
		return fmt.Errorf("kafka-brokers cannot be empty")
	}
	if c.LedgerAlertTopic == "" {
		return fmt.Errorf("ledger-alert-topic cannot be empty")
	}
	if c.ConsumerGroupID == "" {
		return fmt.Errorf("consumer-group-id cannot be empty")
	}
	if c.RulesFile == "" && c.RedisAddr == "" {
		return fmt.Errorf("either rules-file or redis-addr must be set")
	}
	if c.GatewayURL == "" {
		return fmt.Errorf("gateway-url cannot be empty")
	}
	if c.Identity == "" {
		return fmt.Errorf("identity cannot be empty")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be > 0")
	}
	return nil
}

// RoleSubscriber holds configuration for the per-role delivery consumer.
type RoleSubscriber struct {
	KafkaBrokers string
	GroupPrefix  string
	RedisAddr    string
	Roles        string
}

// Validate checks that all required subscriber fields are set.
func (c *RoleSubscriber) Validate() error {
	if c.KafkaBrokers == "" {
		return fmt.Errorf("kafka-brokers cannot be empty")
	}
	if c.GroupPrefix == "" {
		return fmt.Errorf("group-prefix cannot be empty")
	}
	if c.RedisAddr == "" && c.Roles == "" {
		return fmt.Errorf("either redis-addr or roles must be set")
	}
	return nil
}

// SensorPublisher holds configuration for the synthetic telemetry tool.
type SensorPublisher struct {
	KafkaBrokers   string
	TelemetryTopic string
	SensorID       string
	Interval       time.Duration
	MinValue       float64
	MaxValue       float64
	MalformedEvery int
}

// Validate checks that all required publisher fields are set.
func (c *SensorPublisher) Validate() error {
	if c.KafkaBrokers == "" {
		return fmt.Errorf("kafka-brokers cannot be empty")
	}
	if c.TelemetryTopic == "" {
		return fmt.Errorf("telemetry-topic cannot be empty")
	}
	if c.SensorID == "" {
		return fmt.Errorf("sensor-id cannot be empty")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be > 0")
	}
	if c.MaxValue < c.MinValue {
		return fmt.Errorf("max-value must be >= min-value")
	}
	if c.MalformedEvery < 0 {
		return fmt.Errorf("malformed-every cannot be negative")
	}
	return nil
}
