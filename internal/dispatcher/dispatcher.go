// Package dispatcher runs the CEP loop: consume telemetry, evaluate every
// rule's sliding window, and emit derived alerts to the role router and the
// ledger-alert topic. The loop is fail-soft: one bad event, one failing
// rule, or one failed delivery never stops processing.
package dispatcher

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"cepbridge/internal/events"
	"cepbridge/internal/metrics"
	"cepbridge/internal/rules"
	"cepbridge/internal/window"

	"github.com/google/uuid"
)

// TelemetryReader is the inbound event stream.
type TelemetryReader interface {
	ReadTelemetry(ctx context.Context) (*events.TelemetryEvent, error)
}

// AlertRouter fans a derived alert out to its recipient roles.
type AlertRouter interface {
	Route(ctx context.Context, alert *events.AlertRecord) error
}

// Publisher is the outbound channel for the ledger-alert path.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Dispatcher is the single logical consumer of the telemetry stream. Window
// state lives here and is mutated only by Run's goroutine, so rule
// evaluation for one event always completes before the next event is read.
type Dispatcher struct {
	consumer    TelemetryReader
	store       *rules.Store
	evaluator   *window.Evaluator
	router      AlertRouter
	publisher   Publisher
	ledgerTopic string
	metrics     metrics.Recorder

	lastSnapshot *rules.RuleSet
}

// NewDispatcher creates a dispatcher. ledgerTopic may be empty to disable
// the ledger-alert path; publisher is required only when it is set.
func NewDispatcher(consumer TelemetryReader, store *rules.Store, router AlertRouter, publisher Publisher, ledgerTopic string, m metrics.Recorder) *Dispatcher {
	if m == nil {
		m = metrics.Noop{}
	}
	return &Dispatcher{
		consumer:    consumer,
		store:       store,
		evaluator:   window.NewEvaluator(),
		router:      router,
		publisher:   publisher,
		ledgerTopic: ledgerTopic,
		metrics:     m,
	}
}

// Run consumes telemetry until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	slog.Info("Starting telemetry dispatch loop")

	for {
		select {
		case <-ctx.Done():
			slog.Info("Telemetry dispatch loop stopped")
			return nil
		default:
			event, err := d.consumer.ReadTelemetry(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				slog.Error("Failed to read telemetry event", "error", err)
				d.metrics.RecordError()
				continue
			}
			d.metrics.RecordReceived()
			d.Process(ctx, event)
			d.metrics.RecordProcessed()
		}
	}
}

// Process evaluates one event against every rule in the current snapshot,
// in snapshot order.
func (d *Dispatcher) Process(ctx context.Context, event *events.TelemetryEvent) {
	snapshot := d.store.Current()
	if snapshot == nil {
		slog.Warn("No rule snapshot loaded, dropping event")
		return
	}

	// A wholesale rule-set replacement invalidates accumulated window state:
	// window sizes and thresholds may have changed under the same rule name.
	if snapshot != d.lastSnapshot {
		if d.lastSnapshot != nil {
			slog.Info("Rule snapshot changed, resetting window state")
			d.evaluator.Reset()
		}
		d.lastSnapshot = snapshot
	}

	if !event.Structured() {
		slog.Warn("Unstructured telemetry payload, wrapped as raw fallback",
			"raw", event.Raw,
		)
		return
	}

	for i := range snapshot.Rules {
		rule := &snapshot.Rules[i]

		// Source-type filtering happens before buffering: an event of the
		// wrong type must not enter the rule's window at all.
		if !d.ruleApplies(rule, event) {
			continue
		}

		matched, matchedWindow := d.evaluator.Observe(rule, event.Value)
		if !matched {
			continue
		}

		alert := d.buildAlert(rule, event, matchedWindow)
		slog.Info("Rule triggered",
			"rule", rule.Name,
			"alert_id", alert.AlertID,
			"window", matchedWindow,
		)

		if err := d.router.Route(ctx, alert); err != nil {
			slog.Error("Failed to route alert to roles",
				"alert_id", alert.AlertID,
				"rule", rule.Name,
				"error", err,
			)
			d.metrics.RecordError()
		} else {
			d.metrics.RecordPublished()
		}

		if d.ledgerTopic != "" && rule.Transaction != "" {
			d.publishLedgerAlert(ctx, alert)
		}
	}
}

// ruleApplies reports whether the event should be evaluated by the rule:
// the sensor type must match, and when the rule names a specific sensor,
// the sensor id must match too.
func (d *Dispatcher) ruleApplies(rule *rules.Rule, event *events.TelemetryEvent) bool {
	if rule.SensorType != eventType(event) {
		return false
	}
	if rule.SensorID != "" && rule.SensorID != event.SensorID {
		return false
	}
	return true
}

// eventType derives the source-type of an event from its sensor id.
// Enrolled sensor ids are of the form "<sensorType>_sensor_<n>"; an id
// without that marker is its own type.
func eventType(event *events.TelemetryEvent) string {
	if idx := strings.Index(event.SensorID, "_sensor_"); idx >= 0 {
		return event.SensorID[:idx]
	}
	return event.SensorID
}

func (d *Dispatcher) buildAlert(rule *rules.Rule, event *events.TelemetryEvent, matchedWindow []float64) *events.AlertRecord {
	avg := 0.0
	for _, v := range matchedWindow {
		avg += v
	}
	if len(matchedWindow) > 0 {
		avg /= float64(len(matchedWindow))
	}

	return &events.AlertRecord{
		AlertID:         uuid.New().String(),
		Rule:            rule.Name,
		ContractName:    rule.ContractName,
		Transaction:     rule.Transaction,
		EventType:       rule.EventType,
		Roles:           rule.Roles,
		Message:         events.FormatWindowMessage(rule.Name, matchedWindow),
		Timestamp:       events.Now(),
		SensorID:        event.SensorID,
		AvgValue:        avg,
		SensorTimestamp: event.Timestamp,
	}
}

func (d *Dispatcher) publishLedgerAlert(ctx context.Context, alert *events.AlertRecord) {
	payload, err := json.Marshal(alert)
	if err != nil {
		slog.Error("Failed to marshal ledger alert", "alert_id", alert.AlertID, "error", err)
		d.metrics.RecordError()
		return
	}
	if err := d.publisher.Publish(ctx, d.ledgerTopic, []byte(alert.SensorID), payload); err != nil {
		slog.Error("Failed to publish ledger alert",
			"alert_id", alert.AlertID,
			"topic", d.ledgerTopic,
			"error", err,
		)
		d.metrics.RecordError()
		return
	}
	d.metrics.IncrementCustom("ledger_alerts_published")
}
