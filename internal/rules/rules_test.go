package rules

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func testRules() []Rule {
	return []Rule{
		{
			Name:         "tempRule",
			SensorType:   "temperature",
			SensorID:     "temperature_sensor_1",
			WindowSize:   3,
			Threshold:    25,
			ContractName: "vaccine",
			Transaction:  "tempViolation",
			Roles:        []string{"buyer", "seller"},
			EventType:    "violation",
		},
		{
			Name:       "humidityRule",
			SensorType: "humidity",
			SensorID:   "humidity_sensor_1",
			WindowSize: 2,
			Threshold:  80,
		},
	}
}

func TestNewRuleSet(t *testing.T) {
	rs, err := NewRuleSet(testRules(), 7)
	if err != nil {
		t.Fatalf("NewRuleSet() error = %v", err)
	}
	if rs.Len() != 2 {
		t.Errorf("Len() = %v, want 2", rs.Len())
	}
	if rs.Version != 7 {
		t.Errorf("Version = %v, want 7", rs.Version)
	}

	rule := rs.BySensorID("temperature_sensor_1")
	if rule == nil || rule.Name != "tempRule" {
		t.Errorf("BySensorID() = %v, want tempRule", rule)
	}
	if rs.BySensorID("unknown") != nil {
		t.Error("BySensorID(unknown) should be nil")
	}
}

func TestNewRuleSet_InvalidRule(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
	}{
		{"empty name", Rule{SensorType: "temperature", WindowSize: 3}},
		{"empty sensorType", Rule{Name: "r", WindowSize: 3}},
		{"zero window", Rule{Name: "r", SensorType: "temperature"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRuleSet([]Rule{tt.rule}, 0)
			if !errors.Is(err, ErrSourceMalformed) {
				t.Errorf("NewRuleSet() error = %v, want ErrSourceMalformed", err)
			}
		})
	}
}

// stubSource lets tests control what the store loads.
type stubSource struct {
	rs      *RuleSet
	err     error
	version int64
}

func (s *stubSource) Load(ctx context.Context) (*RuleSet, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.rs, nil
}

func (s *stubSource) Version(ctx context.Context) (int64, error) {
	return s.version, nil
}

func TestStore_LoadFailureIsFatal(t *testing.T) {
	src := &stubSource{err: fmt.Errorf("%w: gone", ErrSourceNotFound)}
	store := NewStore(src)

	if err := store.Load(context.Background()); err == nil {
		t.Fatal("Load() should fail when the source is missing")
	}
	if store.Current() != nil {
		t.Error("Current() should be nil before any successful load")
	}
}

func TestStore_ReloadKeepsPriorSnapshot(t *testing.T) {
	rs, err := NewRuleSet(testRules(), 1)
	if err != nil {
		t.Fatalf("NewRuleSet() error = %v", err)
	}
	src := &stubSource{rs: rs}
	store := NewStore(src)

	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// A failing reload must not clear the running snapshot.
	src.err = fmt.Errorf("%w: bad json", ErrSourceMalformed)
	if err := store.Reload(context.Background()); err == nil {
		t.Fatal("Reload() should surface the source error")
	}
	if got := store.Current(); got != rs {
		t.Error("Current() changed after a failed reload")
	}

	// A successful reload swaps the snapshot wholesale.
	rs2, err := NewRuleSet(testRules()[:1], 2)
	if err != nil {
		t.Fatalf("NewRuleSet() error = %v", err)
	}
	src.err = nil
	src.rs = rs2
	if err := store.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if got := store.Current(); got != rs2 {
		t.Error("Current() did not swap after a successful reload")
	}
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		src := &FileSource{Path: filepath.Join(dir, "missing.json")}
		_, err := src.Load(context.Background())
		if !errors.Is(err, ErrSourceNotFound) {
			t.Errorf("Load() error = %v, want ErrSourceNotFound", err)
		}
	})

	t.Run("malformed document", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
			t.Fatal(err)
		}
		src := &FileSource{Path: path}
		_, err := src.Load(context.Background())
		if !errors.Is(err, ErrSourceMalformed) {
			t.Errorf("Load() error = %v, want ErrSourceMalformed", err)
		}
	})

	t.Run("valid document", func(t *testing.T) {
		path := filepath.Join(dir, "rules.json")
		doc := `{"rules":[{"name":"tempRule","sensorType":"temperature","sensorId":"temperature_sensor_1","count":3,"threshold":25,"chaincodeName":"vaccine","chaincodeFunction":"tempViolation","roles":["buyer","seller"],"eventType":"violation"}]}`
		if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
			t.Fatal(err)
		}
		src := &FileSource{Path: path}
		rs, err := src.Load(context.Background())
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if rs.Len() != 1 {
			t.Fatalf("Len() = %v, want 1", rs.Len())
		}
		rule := rs.Rules[0]
		if rule.Name != "tempRule" || rule.WindowSize != 3 || rule.Threshold != 25 {
			t.Errorf("unexpected rule: %+v", rule)
		}
		if rule.ContractName != "vaccine" || rule.Transaction != "tempViolation" {
			t.Errorf("unexpected ledger target: %+v", rule)
		}
	})
}
