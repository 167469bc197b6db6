// Package rules defines the pattern rule model and the store that holds the
// current rule snapshot. Rules are immutable once loaded; a reload replaces
// the whole set atomically and a failed reload keeps the prior snapshot.
package rules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Sentinel errors for rule source failures.
var (
	// ErrSourceNotFound indicates the rule document does not exist.
	ErrSourceNotFound = errors.New("rule source not found")
	// ErrSourceMalformed indicates the rule document could not be parsed.
	ErrSourceMalformed = errors.New("rule source malformed")
)

// Rule is one stateful pattern rule. A rule reacts to events of SensorType,
// keeps a sliding window of WindowSize samples, and fires when every sample
// in a full window exceeds Threshold.
type Rule struct {
	Name         string   `json:"name"`
	SensorType   string   `json:"sensorType"`
	SensorID     string   `json:"sensorId"`
	WindowSize   int      `json:"count"`
	Threshold    float64  `json:"threshold"`
	ContractName string   `json:"chaincodeName"`
	Transaction  string   `json:"chaincodeFunction"`
	Roles        []string `json:"roles"`
	EventType    string   `json:"eventType"`
}

// Validate checks rule fields that the evaluator depends on.
func (r *Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name cannot be empty")
	}
	if r.SensorType == "" {
		return fmt.Errorf("rule %q: sensorType cannot be empty", r.Name)
	}
	if r.WindowSize <= 0 {
		return fmt.Errorf("rule %q: count must be > 0", r.Name)
	}
	return nil
}

// RuleSet is one loaded rule-set version: an ordered list (evaluation order
// is the document order) plus a lookup by sensor id for the submission path.
type RuleSet struct {
	Rules    []Rule
	Version  int64
	bySensor map[string]*Rule
}

// NewRuleSet builds a RuleSet from validated rules.
func NewRuleSet(list []Rule, version int64) (*RuleSet, error) {
	rs := &RuleSet{
		Rules:    list,
		Version:  version,
		bySensor: make(map[string]*Rule, len(list)),
	}
	for i := range list {
		if err := list[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSourceMalformed, err)
		}
		if list[i].SensorID != "" {
			rs.bySensor[list[i].SensorID] = &list[i]
		}
	}
	return rs, nil
}

// BySensorID returns the rule registered for a sensor id, or nil.
func (rs *RuleSet) BySensorID(sensorID string) *Rule {
	return rs.bySensor[sensorID]
}

// Len returns the number of rules in the set.
func (rs *RuleSet) Len() int {
	return len(rs.Rules)
}

// Source loads a rule document from an external location.
type Source interface {
	// Load reads and parses the current rule document.
	Load(ctx context.Context) (*RuleSet, error)
	// Version returns the current rule-set version, when the source has a
	// cheap version channel. Sources without one return 0.
	Version(ctx context.Context) (int64, error)
}

// Store holds the most recently successfully loaded rule snapshot.
// Reads and snapshot swaps are safe for concurrent use.
type Store struct {
	source Source

	mu      sync.RWMutex
	current *RuleSet
}

// NewStore creates a store backed by the given source. No rules are loaded
// until Load is called.
func NewStore(source Source) *Store {
	return &Store{source: source}
}

// Load performs the initial load. It fails if the source is missing or
// malformed; the engine must not start without a rule snapshot.
func (s *Store) Load(ctx context.Context) error {
	rs, err := s.source.Load(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.current = rs
	s.mu.Unlock()

	slog.Info("Loaded rule snapshot",
		"rules_count", rs.Len(),
		"version", rs.Version,
	)
	return nil
}

// Reload attempts to replace the snapshot. On failure the prior snapshot is
// kept and a warning is logged; the engine never runs with zero rules merely
// because one reload attempt failed.
func (s *Store) Reload(ctx context.Context) error {
	rs, err := s.source.Load(ctx)
	if err != nil {
		slog.Warn("Rule reload failed, keeping prior snapshot", "error", err)
		return err
	}
	s.mu.Lock()
	s.current = rs
	s.mu.Unlock()

	slog.Info("Rule snapshot replaced",
		"rules_count", rs.Len(),
		"version", rs.Version,
	)
	return nil
}

// Current returns the most recently successfully loaded snapshot. It is nil
// only before the first Load succeeds.
func (s *Store) Current() *RuleSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}
