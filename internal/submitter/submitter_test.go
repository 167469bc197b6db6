package submitter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cepbridge/internal/ledger"
	"cepbridge/internal/rules"
)

// fakeContract counts calls and fails according to its scripts.
type fakeContract struct {
	mu          sync.Mutex
	initCalls   int
	submitCalls int
	initErr     error
	submitErr   func(attempt int) error
	lastPayload []byte
}

func (f *fakeContract) Init(ctx context.Context, params []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	if f.initErr != nil {
		return "", f.initErr
	}
	return "instance-1", nil
}

func (f *fakeContract) Submit(ctx context.Context, transaction string, payload []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls++
	f.lastPayload = payload
	if f.submitErr != nil {
		if err := f.submitErr(f.submitCalls); err != nil {
			return nil, err
		}
	}
	return []byte(`{"ok":true}`), nil
}

// fakeResolver hands out one contract for every pair.
type fakeResolver struct {
	contract *fakeContract
	resolves atomic.Int32
}

func (f *fakeResolver) ResolveContract(ctx context.Context, identity, contractName string) (ledger.Contract, error) {
	f.resolves.Add(1)
	return f.contract, nil
}

func newTestSubmitter(t *testing.T, contract *fakeContract) *Submitter {
	t.Helper()
	rs, err := rules.NewRuleSet([]rules.Rule{{
		Name:         "tempRule",
		SensorType:   "temperature",
		SensorID:     "temperature_sensor_1",
		WindowSize:   3,
		Threshold:    25,
		ContractName: "vaccine",
		Transaction:  "tempViolation",
	}}, 1)
	if err != nil {
		t.Fatal(err)
	}
	src := &stubRuleSource{rs: rs}
	store := rules.NewStore(src)
	if err := store.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	sub := NewSubmitter(store, &fakeResolver{contract: contract}, "Regulator2", nil)
	sub.retryDelay = time.Millisecond
	return sub
}

type stubRuleSource struct {
	rs *rules.RuleSet
}

func (s *stubRuleSource) Load(ctx context.Context) (*rules.RuleSet, error) { return s.rs, nil }
func (s *stubRuleSource) Version(ctx context.Context) (int64, error)      { return 0, nil }

const testAlert = `{"sensorId":"temperature_sensor_1","avgValue":29,"sensorTimestamp":"2026-01-02T03:04:05Z"}`

func TestSubmitter_Execute(t *testing.T) {
	contract := &fakeContract{}
	sub := newTestSubmitter(t, contract)

	res, err := sub.Execute(context.Background(), []byte(testAlert))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if string(res) != `{"ok":true}` {
		t.Errorf("Execute() = %s, want {\"ok\":true}", res)
	}
	if contract.initCalls != 1 {
		t.Errorf("init called %d times, want 1", contract.initCalls)
	}
	if contract.submitCalls != 1 {
		t.Errorf("submit called %d times, want 1", contract.submitCalls)
	}

	var payload struct {
		ContractID string `json:"contractId"`
		Event      struct {
			SensorID        *string  `json:"sensorId"`
			Value           *float64 `json:"value"`
			SensorTimestamp *string  `json:"sensorTimestamp"`
		} `json:"event"`
	}
	if err := json.Unmarshal(contract.lastPayload, &payload); err != nil {
		t.Fatalf("submit payload is not valid JSON: %v", err)
	}
	if payload.ContractID != "instance-1" {
		t.Errorf("payload contractId = %q, want instance-1", payload.ContractID)
	}
	if payload.Event.SensorID == nil || *payload.Event.SensorID != "temperature_sensor_1" {
		t.Errorf("payload sensorId = %v, want temperature_sensor_1", payload.Event.SensorID)
	}
	if payload.Event.Value == nil || *payload.Event.Value != 29 {
		t.Errorf("payload value = %v, want 29", payload.Event.Value)
	}
}

func TestSubmitter_InitHappensOnce(t *testing.T) {
	contract := &fakeContract{}
	sub := newTestSubmitter(t, contract)

	// Two concurrent alerts against the same uninitialized instance: one
	// initialization, both submissions.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := sub.Execute(context.Background(), []byte(testAlert)); err != nil {
				t.Errorf("Execute() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if contract.initCalls != 1 {
		t.Errorf("init called %d times, want 1", contract.initCalls)
	}
	if contract.submitCalls != 2 {
		t.Errorf("submit called %d times, want 2", contract.submitCalls)
	}
}

func TestSubmitter_ConflictRetriedFiveTimes(t *testing.T) {
	contract := &fakeContract{
		submitErr: func(attempt int) error {
			return fmt.Errorf("%w: tx rejected", ledger.ErrWriteConflict)
		},
	}
	sub := newTestSubmitter(t, contract)

	_, err := sub.Execute(context.Background(), []byte(testAlert))
	if err == nil {
		t.Fatal("Execute() should fail after exhausting conflict retries")
	}
	if contract.submitCalls != 5 {
		t.Errorf("submit attempted %d times, want exactly 5", contract.submitCalls)
	}
}

func TestSubmitter_ConflictResolvedMidRetry(t *testing.T) {
	contract := &fakeContract{
		submitErr: func(attempt int) error {
			if attempt < 3 {
				return fmt.Errorf("%w: tx rejected", ledger.ErrWriteConflict)
			}
			return nil
		},
	}
	sub := newTestSubmitter(t, contract)

	if _, err := sub.Execute(context.Background(), []byte(testAlert)); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if contract.submitCalls != 3 {
		t.Errorf("submit attempted %d times, want 3", contract.submitCalls)
	}
}

func TestSubmitter_NonConflictNeverRetried(t *testing.T) {
	contract := &fakeContract{
		submitErr: func(attempt int) error {
			return fmt.Errorf("endorsement policy failure")
		},
	}
	sub := newTestSubmitter(t, contract)

	_, err := sub.Execute(context.Background(), []byte(testAlert))
	if err == nil {
		t.Fatal("Execute() should surface a non-conflict failure")
	}
	if contract.submitCalls != 1 {
		t.Errorf("submit attempted %d times, want 1 (no retry)", contract.submitCalls)
	}
}

func TestSubmitter_UnknownSensor(t *testing.T) {
	contract := &fakeContract{}
	sub := newTestSubmitter(t, contract)

	_, err := sub.Execute(context.Background(), []byte(`{"sensorId":"unknown_sensor_9","avgValue":1}`))
	if err == nil {
		t.Fatal("Execute() should fail for a sensor with no rule")
	}
	if contract.submitCalls != 0 {
		t.Errorf("submit attempted %d times, want 0", contract.submitCalls)
	}
}

func TestSubmitter_MissingSensorID(t *testing.T) {
	contract := &fakeContract{}
	sub := newTestSubmitter(t, contract)

	_, err := sub.Execute(context.Background(), []byte("no useful fields here"))
	if err == nil {
		t.Fatal("Execute() should fail when no sensorId can be extracted")
	}
	if contract.initCalls != 0 || contract.submitCalls != 0 {
		t.Error("ledger must not be called without rule metadata")
	}
}

func TestSubmitter_MissingValueStillSubmitted(t *testing.T) {
	// Missing event fields are passed through as explicit nulls; the
	// submission still happens.
	contract := &fakeContract{}
	sub := newTestSubmitter(t, contract)

	if _, err := sub.Execute(context.Background(), []byte(`sensorId=temperature_sensor_1`)); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if contract.submitCalls != 1 {
		t.Fatalf("submit called %d times, want 1", contract.submitCalls)
	}

	var payload map[string]any
	if err := json.Unmarshal(contract.lastPayload, &payload); err != nil {
		t.Fatal(err)
	}
	event := payload["event"].(map[string]any)
	if event["value"] != nil {
		t.Errorf("payload value = %v, want null", event["value"])
	}
}
