package events

import (
	"testing"
)

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

func TestParseAlertFields_Structured(t *testing.T) {
	body := `{"sensorId":"temperature_sensor_1","avgValue":27.5,"sensorTimestamp":"2026-01-02T03:04:05Z"}`
	f := ParseAlertFields([]byte(body))

	if f.SensorID == nil || *f.SensorID != "temperature_sensor_1" {
		t.Errorf("SensorID = %v, want temperature_sensor_1", f.SensorID)
	}
	if f.AvgValue == nil || *f.AvgValue != 27.5 {
		t.Errorf("AvgValue = %v, want 27.5", f.AvgValue)
	}
	if f.SensorTimestamp == nil || *f.SensorTimestamp != "2026-01-02T03:04:05Z" {
		t.Errorf("SensorTimestamp = %v, want 2026-01-02T03:04:05Z", f.SensorTimestamp)
	}
	if f.AlertTimestamp != nil {
		t.Errorf("AlertTimestamp = %v, want nil", *f.AlertTimestamp)
	}
}

func TestParseAlertFields_KeyValueFallback(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantID   *string
		wantAvg  *float64
		wantTime *string
	}{
		{
			name:     "all fields in free text",
			body:     `DataTransfer{sensorId=temperature_sensor_1, avgValue=27.5, sensorTimestamp=2026-01-02T03:04:05Z}`,
			wantID:   strPtr("temperature_sensor_1"),
			wantAvg:  floatPtr(27.5),
			wantTime: strPtr("2026-01-02T03:04:05Z"),
		},
		{
			name:    "missing fields stay nil",
			body:    `sensorId=temperature_sensor_1 some trailing text`,
			wantID:  strPtr("temperature_sensor_1"),
			wantAvg: nil,
		},
		{
			name:    "nothing extractable",
			body:    "not-json",
			wantID:  nil,
			wantAvg: nil,
		},
		{
			name:    "non-numeric avgValue stays nil",
			body:    `sensorId=s1 avgValue=high`,
			wantID:  strPtr("s1"),
			wantAvg: nil,
		},
		{
			name:     "raw grammar inside structured fallback wrapper",
			body:     `{"raw":"sensorId=s1, avgValue=3, sensorTimestamp=t0"}`,
			wantID:   strPtr("s1"),
			wantAvg:  floatPtr(3),
			wantTime: strPtr("t0"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := ParseAlertFields([]byte(tt.body))

			if (f.SensorID == nil) != (tt.wantID == nil) {
				t.Fatalf("SensorID = %v, want %v", f.SensorID, tt.wantID)
			}
			if tt.wantID != nil && *f.SensorID != *tt.wantID {
				t.Errorf("SensorID = %q, want %q", *f.SensorID, *tt.wantID)
			}

			if (f.AvgValue == nil) != (tt.wantAvg == nil) {
				t.Fatalf("AvgValue = %v, want %v", f.AvgValue, tt.wantAvg)
			}
			if tt.wantAvg != nil && *f.AvgValue != *tt.wantAvg {
				t.Errorf("AvgValue = %v, want %v", *f.AvgValue, *tt.wantAvg)
			}

			if tt.wantTime != nil {
				if f.SensorTimestamp == nil || *f.SensorTimestamp != *tt.wantTime {
					t.Errorf("SensorTimestamp = %v, want %q", f.SensorTimestamp, *tt.wantTime)
				}
			}
		})
	}
}
