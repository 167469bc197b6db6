// Package events defines the telemetry and alert event structures exchanged
// over the broker, and the parsers that decode them.
package events

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TelemetryEvent represents one reading from a telemetry source.
// A structured event carries SensorID, Value and Timestamp; an event whose
// body could not be decoded carries only Raw and matches no typed rule.
type TelemetryEvent struct {
	SensorID  string  `json:"sensorId"`
	Value     float64 `json:"value"`
	Timestamp string  `json:"timestamp"`
	Raw       string  `json:"raw,omitempty"`
}

// Structured reports whether the event was decoded from a well-formed body.
func (e *TelemetryEvent) Structured() bool {
	return e.SensorID != ""
}

// ParseTelemetry decodes a telemetry message body. Malformed bodies are not
// an error: they are wrapped as a raw-text fallback event so the stream
// never loses a message to a bad payload.
func ParseTelemetry(body []byte) *TelemetryEvent {
	var ev TelemetryEvent
	if err := json.Unmarshal(body, &ev); err != nil || ev.SensorID == "" {
		return &TelemetryEvent{Raw: string(body)}
	}
	return &ev
}

// AlertRecord is the derived event produced when a rule matches. It is
// published once per recipient role and, when the rule names a ledger
// transaction, once on the ledger-alert topic.
type AlertRecord struct {
	AlertID      string   `json:"alert_id"`
	Rule         string   `json:"rule"`
	ContractName string   `json:"contract_name"`
	Transaction  string   `json:"transaction"`
	EventType    string   `json:"event_type"`
	Roles        []string `json:"roles"`
	Message      string   `json:"message"`
	Timestamp    string   `json:"timestamp"`

	// Fields of the sample that completed the window, passed through to the
	// ledger transaction payload.
	SensorID        string  `json:"sensorId"`
	AvgValue        float64 `json:"avgValue"`
	SensorTimestamp string  `json:"sensorTimestamp"`
}

// FormatWindowMessage renders the human-readable alert message listing the
// matched window values.
func FormatWindowMessage(rule string, window []float64) string {
	parts := make([]string, len(window))
	for i, v := range window {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return fmt.Sprintf("[%s] Matched values: [%s]", rule, strings.Join(parts, ", "))
}

// Now returns the current time in the RFC3339 form used on every outbound
// record.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
