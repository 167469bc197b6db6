package submitter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"cepbridge/internal/events"
	"cepbridge/internal/ledger"
	"cepbridge/internal/rules"
)

const (
	// maxAttempts is the total number of submission attempts when every
	// attempt fails with a write conflict.
	maxAttempts = 5
	// conflictDelay is the fixed wait between conflict retries.
	conflictDelay = 2 * time.Second
)

// Submitter converts raw alerts into ledger transaction calls.
type Submitter struct {
	store      *rules.Store
	resolver   ledger.Resolver
	registry   *Registry
	identity   string
	initParams []byte
	retryDelay time.Duration
}

// NewSubmitter creates a submitter. initParams is the default parameter
// document passed to the one-time initialization call.
func NewSubmitter(store *rules.Store, resolver ledger.Resolver, identity string, initParams []byte) *Submitter {
	if len(initParams) == 0 {
		initParams = []byte("{}")
	}
	return &Submitter{
		store:      store,
		resolver:   resolver,
		registry:   NewRegistry(),
		identity:   identity,
		initParams: initParams,
		retryDelay: conflictDelay,
	}
}

// txPayload is the body submitted to the target transaction. Event fields
// extracted from the alert are passed through as-is; a field the alert did
// not carry is an explicit null, and the submission is still attempted.
type txPayload struct {
	ContractID string  `json:"contractId"`
	Event      txEvent `json:"event"`
}

type txEvent struct {
	SensorID        *string  `json:"sensorId"`
	Value           *float64 `json:"value"`
	SensorTimestamp *string  `json:"sensorTimestamp"`
}

// Execute parses the alert, resolves its rule metadata, ensures the target
// contract instance is initialized exactly once, and submits the rule's
// transaction. Write conflicts are retried up to maxAttempts with a fixed
// delay and a fresh call each attempt; any other failure, or exhaustion,
// surfaces to the caller.
func (s *Submitter) Execute(ctx context.Context, rawAlert []byte) ([]byte, error) {
	fields := events.ParseAlertFields(rawAlert)
	if fields.SensorID == nil {
		return nil, fmt.Errorf("alert carries no sensorId, cannot resolve rule metadata")
	}
	sensorID := *fields.SensorID

	snapshot := s.store.Current()
	if snapshot == nil {
		return nil, fmt.Errorf("no rule snapshot loaded")
	}
	rule := snapshot.BySensorID(sensorID)
	if rule == nil {
		return nil, fmt.Errorf("no rule found for sensorId %q", sensorID)
	}
	if rule.Transaction == "" || rule.ContractName == "" {
		return nil, fmt.Errorf("rule %q has no ledger target for sensorId %q", rule.Name, sensorID)
	}

	contract, err := s.resolver.ResolveContract(ctx, s.identity, rule.ContractName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve contract %q: %w", rule.ContractName, err)
	}

	instanceID, err := s.registry.InstanceID(ctx, rule.ContractName, func(ctx context.Context) (string, error) {
		return contract.Init(ctx, s.initParams)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize contract %q: %w", rule.ContractName, err)
	}

	payload, err := json.Marshal(txPayload{
		ContractID: instanceID,
		Event: txEvent{
			SensorID:        fields.SensorID,
			Value:           fields.AvgValue,
			SensorTimestamp: fields.SensorTimestamp,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transaction payload: %w", err)
	}

	return s.submitWithRetry(ctx, contract, rule, instanceID, payload)
}

// submitWithRetry submits the transaction, retrying only on write conflict.
// Each attempt is a fresh call; non-conflict failures are terminal
// immediately.
func (s *Submitter) submitWithRetry(ctx context.Context, contract ledger.Contract, rule *rules.Rule, instanceID string, payload []byte) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res, err := contract.Submit(ctx, rule.Transaction, payload)
		if err == nil {
			slog.Info("Transaction submitted",
				"transaction", rule.Transaction,
				"contract", rule.ContractName,
				"instance_id", instanceID,
				"attempt", attempt,
			)
			return res, nil
		}

		if !ledger.IsWriteConflict(err) {
			return nil, fmt.Errorf("transaction %q on contract %q (instance %s) failed: %w",
				rule.Transaction, rule.ContractName, instanceID, err)
		}

		lastErr = err
		if attempt == maxAttempts {
			break
		}

		slog.Warn("Write conflict, retrying transaction",
			"transaction", rule.Transaction,
			"instance_id", instanceID,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"delay", s.retryDelay,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.retryDelay):
		}
	}

	return nil, fmt.Errorf("transaction %q on contract %q (instance %s) failed after %d attempts: %w",
		rule.Transaction, rule.ContractName, instanceID, maxAttempts, lastErr)
}
