package rules

import (
	"context"
	"log/slog"
	"time"
)

// Reloader polls the source version and replaces the store snapshot when it
// changes. A failed check or reload is logged and polling continues; the
// running snapshot is never cleared.
type Reloader struct {
	store          *Store
	source         Source
	pollInterval   time.Duration
	currentVersion int64
}

// NewReloader creates a reloader for the given store and source.
func NewReloader(store *Store, source Source, pollInterval time.Duration) *Reloader {
	return &Reloader{
		store:        store,
		source:       source,
		pollInterval: pollInterval,
	}
}

// Start records the current version and begins polling in a background
// goroutine. The goroutine exits when ctx is cancelled.
func (r *Reloader) Start(ctx context.Context) error {
	version, err := r.source.Version(ctx)
	if err != nil {
		return err
	}
	r.currentVersion = version

	slog.Info("Starting rule version poller",
		"poll_interval", r.pollInterval,
		"initial_version", r.currentVersion,
	)

	go r.pollLoop(ctx)
	return nil
}

func (r *Reloader) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Rule version poller stopped")
			return
		case <-ticker.C:
			if err := r.checkAndReload(ctx); err != nil {
				slog.Warn("Rule reload check failed", "error", err)
			}
		}
	}
}

func (r *Reloader) checkAndReload(ctx context.Context) error {
	version, err := r.source.Version(ctx)
	if err != nil {
		return err
	}
	if version == r.currentVersion {
		return nil
	}

	slog.Info("Rule version changed, reloading snapshot",
		"old_version", r.currentVersion,
		"new_version", version,
	)

	if err := r.store.Reload(ctx); err != nil {
		return err
	}
	r.currentVersion = version
	return nil
}

// ReloadNow forces an immediate reload check, for use by an external reload
// trigger.
func (r *Reloader) ReloadNow(ctx context.Context) error {
	return r.checkAndReload(ctx)
}
