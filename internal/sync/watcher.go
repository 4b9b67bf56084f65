package sync

import (
	"context"
	stdsync "sync"
	"time"

	"github.com/gstbill/gstbill/internal/logging"
	"github.com/gstbill/gstbill/internal/remote"
)

// pingTimeout bounds a single connectivity probe so a hung network does not
// stall the watcher loop.
const pingTimeout = 3 * time.Second

// Watcher probes the remote backend on a fixed interval and tracks an
// online/offline mode. A transition from offline to online triggers a sync
// cycle so queued work flushes as soon as connectivity returns.
type Watcher struct {
	backend  remote.Backend
	manager  *Manager
	log      logging.Logger
	interval time.Duration

	mu     stdsync.Mutex
	online bool
}

func NewWatcher(backend remote.Backend, manager *Manager, log logging.Logger, interval time.Duration) *Watcher {
	return &Watcher{
		backend:  backend,
		manager:  manager,
		log:      log.With("component", "watcher"),
		interval: interval,
	}
}

// Online reports the mode observed by the last probe.
func (w *Watcher) Online() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.online
}

// Run probes immediately and then on every tick until ctx is cancelled.
// The watcher starts offline, so the first successful probe counts as a
// reconnect and flushes anything queued while the daemon was down.
func (w *Watcher) Run(ctx context.Context) {
	w.check(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.check(ctx)
		}
	}
}

func (w *Watcher) check(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	err := w.backend.Ping(pctx)
	cancel()

	if err != nil {
		if w.setOnline(false) {
			w.log.Warn(ctx, "remote backend unreachable, going offline", "error", err)
		}
		return
	}
	if w.setOnline(true) {
		w.log.Info(ctx, "remote backend reachable, back online")
		w.manager.Sync(ctx)
	}
}

// setOnline records the new mode and reports whether it changed.
func (w *Watcher) setOnline(online bool) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	changed := w.online != online
	w.online = online
	return changed
}
