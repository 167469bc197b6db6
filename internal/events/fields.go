package events

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strconv"
)

// AlertFields holds the fields a ledger submission needs from an alert
// payload. Each field is optional: a missing field is a nil pointer, never a
// silently-empty value. Submission proceeds with nulls for missing fields;
// the receiving contract decides whether that is acceptable.
type AlertFields struct {
	SensorID        *string
	AvgValue        *float64
	SensorTimestamp *string
	AlertTimestamp  *string
}

// The fallback grammar accepts key=value pairs embedded in free text, with
// values terminated by whitespace, a comma or a closing brace. These are the
// field names emitted by contract event payloads.
var (
	sensorIDPattern   = regexp.MustCompile(`sensorId=([^\s,}]+)`)
	avgValuePattern   = regexp.MustCompile(`avgValue=([^\s,}]+)`)
	sensorTimePattern = regexp.MustCompile(`sensorTimestamp=([^\s,}]+)`)
	alertTimePattern  = regexp.MustCompile(`alertTimestamp=([^\s,}]+)`)
)

// structuredAlert is the JSON shape attempted before the key=value fallback.
type structuredAlert struct {
	SensorID        string   `json:"sensorId"`
	AvgValue        *float64 `json:"avgValue"`
	SensorTimestamp string   `json:"sensorTimestamp"`
	AlertTimestamp  string   `json:"alertTimestamp"`
	Raw             string   `json:"raw"`
}

// ParseAlertFields extracts submission fields from a raw alert payload.
// It first attempts a structured JSON decode; when the body is not JSON, or
// the JSON carries only a raw-text fallback, it falls back to scanning for
// the key=value grammar. Missing fields are reported as nil and logged, not
// treated as errors.
func ParseAlertFields(body []byte) AlertFields {
	var sa structuredAlert
	if err := json.Unmarshal(body, &sa); err == nil && sa.SensorID != "" {
		f := AlertFields{SensorID: &sa.SensorID, AvgValue: sa.AvgValue}
		if sa.SensorTimestamp != "" {
			f.SensorTimestamp = &sa.SensorTimestamp
		}
		if sa.AlertTimestamp != "" {
			f.AlertTimestamp = &sa.AlertTimestamp
		}
		logMissing(&f)
		return f
	}

	text := string(body)
	if sa.Raw != "" {
		text = sa.Raw
	}

	f := AlertFields{
		SensorID:        matchString(sensorIDPattern, text),
		AvgValue:        matchFloat(avgValuePattern, text),
		SensorTimestamp: matchString(sensorTimePattern, text),
		AlertTimestamp:  matchString(alertTimePattern, text),
	}
	logMissing(&f)
	return f
}

func matchString(re *regexp.Regexp, text string) *string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return &m[1]
}

func matchFloat(re *regexp.Regexp, text string) *float64 {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &v
}

func logMissing(f *AlertFields) {
	if f.SensorID == nil {
		slog.Warn("Alert payload is missing sensorId")
	}
	if f.AvgValue == nil {
		slog.Warn("Alert payload is missing avgValue")
	}
	if f.SensorTimestamp == nil {
		slog.Warn("Alert payload is missing sensorTimestamp")
	}
}
