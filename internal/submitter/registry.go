// Package submitter turns a raw alert into a ledger transaction call with
// initialize-once instance caching and bounded retry on write conflict.
package submitter

import (
	"context"
	"log/slog"
	"sync"
)

// InitFunc performs the one-time initialization call for a logical contract
// instance and returns the instance id the contract assigned.
type InitFunc func(ctx context.Context) (string, error)

// session tracks one logical contract instance through
// Uninitialized -> Initializing -> Ready. ready is closed when the
// transition resolves; a failed transition records err and the entry is
// dropped so a later caller may initialize again.
type session struct {
	ready      chan struct{}
	instanceID string
	err        error
}

// Registry is the single point of truth preventing duplicate initialization:
// at most one session exists per logical instance, and only one caller runs
// the initialization transition while everyone else waits for it to resolve.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*session
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*session)}
}

// InstanceID returns the instance id for the given logical instance key,
// running init exactly once if no session exists yet. Concurrent callers on
// an uninitialized instance block until initialization resolves and then
// share the same id. A failed initialization is returned to every waiter and
// the session is cleared, so the instance may be initialized by a later
// call.
func (r *Registry) InstanceID(ctx context.Context, key string, init InitFunc) (string, error) {
	r.mu.Lock()
	if s, ok := r.sessions[key]; ok {
		r.mu.Unlock()
		select {
		case <-s.ready:
			return s.instanceID, s.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	s := &session{ready: make(chan struct{})}
	r.sessions[key] = s
	r.mu.Unlock()

	slog.Info("Initializing contract instance", "instance", key)
	s.instanceID, s.err = init(ctx)
	if s.err != nil {
		// Clear the failed session before waking waiters so a retry can
		// start a fresh initialization.
		r.mu.Lock()
		delete(r.sessions, key)
		r.mu.Unlock()
		slog.Error("Contract initialization failed", "instance", key, "error", s.err)
	} else {
		slog.Info("Contract instance initialized", "instance", key, "instance_id", s.instanceID)
	}
	close(s.ready)

	return s.instanceID, s.err
}

// Invalidate drops the cached session for a logical instance.
func (r *Registry) Invalidate(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, key)
}
