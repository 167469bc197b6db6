// Package router implements role-addressed alert fan-out. One message is
// published per (alert, role) pair to a topic derived deterministically from
// the normalized role name; subscribers bind by role without the publisher
// knowing who or how many they are.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"cepbridge/internal/events"
)

// TopicPrefix is prepended to the normalized role name to form the delivery
// topic.
const TopicPrefix = "role."

// Publisher is the outbound channel the router fans out on.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Router fans a derived alert out to its recipient roles.
type Router struct {
	publisher Publisher
}

// NewRouter creates a router over the given publisher.
func NewRouter(publisher Publisher) *Router {
	return &Router{publisher: publisher}
}

// NormalizeRole reduces a role name to its canonical form: lowercase,
// surrounding whitespace trimmed. Role names distinguish organizations of
// the same type (two distinct buyers route independently).
func NormalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

// TopicForRole derives the delivery topic for a normalized role name.
func TopicForRole(role string) string {
	return TopicPrefix + role
}

// Route publishes the alert once per role. Empty or malformed role entries
// are skipped with a warning. Delivery is at-most-once best-effort: a failed
// publish for one role is logged and does not abort the remaining roles.
func (r *Router) Route(ctx context.Context, alert *events.AlertRecord) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	var lastErr error
	for _, role := range alert.Roles {
		name := NormalizeRole(role)
		if name == "" {
			slog.Warn("Skipping empty or malformed role", "role", role, "alert_id", alert.AlertID)
			continue
		}

		topic := TopicForRole(name)
		if err := r.publisher.Publish(ctx, topic, []byte(name), payload); err != nil {
			slog.Error("Failed to deliver alert to role",
				"alert_id", alert.AlertID,
				"role", name,
				"topic", topic,
				"error", err,
			)
			lastErr = err
			continue
		}

		slog.Info("Delivered alert to role",
			"alert_id", alert.AlertID,
			"role", name,
			"topic", topic,
		)
	}
	return lastErr
}
