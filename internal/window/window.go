// Package window implements per-rule sliding-window evaluation. Each rule
// owns a bounded FIFO buffer of its most recent samples; a rule matches when
// the buffer is full and every sample exceeds the rule's threshold, and the
// buffer is cleared the instant a match fires so the same data cannot
// re-trigger.
package window

import (
	"cepbridge/internal/rules"
)

// Evaluator holds the window buffers for all rules. It is owned by the
// single dispatch goroutine and performs no locking of its own: buffer
// mutation is serialized by the owner.
type Evaluator struct {
	buffers map[string][]float64
}

// NewEvaluator creates an evaluator with no accumulated state.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		buffers: make(map[string][]float64),
	}
}

// Observe appends value to the rule's window buffer, evicting the oldest
// sample when the buffer would exceed the rule's window size. It reports a
// match iff the buffer is exactly full and every sample exceeds the rule's
// threshold; on a match the returned window is a copy of the buffer contents
// and the buffer is reset.
//
// Source-type filtering is the caller's job: an event whose type does not
// match the rule must not reach Observe at all.
func (e *Evaluator) Observe(rule *rules.Rule, value float64) (bool, []float64) {
	buf := append(e.buffers[rule.Name], value)
	if len(buf) > rule.WindowSize {
		buf = buf[1:]
	}

	if len(buf) == rule.WindowSize && allAbove(buf, rule.Threshold) {
		matched := make([]float64, len(buf))
		copy(matched, buf)
		e.buffers[rule.Name] = nil
		return true, matched
	}

	e.buffers[rule.Name] = buf
	return false, nil
}

// Reset drops all accumulated window state, for use when the rule set is
// replaced wholesale.
func (e *Evaluator) Reset() {
	e.buffers = make(map[string][]float64)
}

// Pending returns the number of samples currently buffered for a rule.
func (e *Evaluator) Pending(ruleName string) int {
	return len(e.buffers[ruleName])
}

func allAbove(window []float64, threshold float64) bool {
	for _, v := range window {
		if v <= threshold {
			return false
		}
	}
	return true
}
